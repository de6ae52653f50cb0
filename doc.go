// Package mfm tracks an investor's equity and fund holdings as lots, values
// them in US dollars and Israeli shekels, and keeps a dated history of the
// portfolio.
//
// The core functionalities include:
//   - Lot Store: every acquisition is a Lot, ordered per symbol by a
//     strictly increasing sequence number.
//   - Divestment: selling shares consumes lots first in, first out, as a
//     plan computed and applied atomically.
//   - Valuation: lots are revalued against live prices, fund redemption
//     prices and conversion rates, concurrently per symbol.
//   - History: the portfolio totals, cash flows and foreign currency balances
//     are rolled once a day into a Snapshot.
//   - Persistence: state is kept in a Repository, with a human-readable JSONL
//     implementation in this package.
//
// The Manager ties all of them together and is what the `mfm` command line
// tool and the HTTP API drive.
package mfm
