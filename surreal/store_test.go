package surreal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/date"
)

var cmpOpts = cmp.Options{
	cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	cmp.Comparer(func(a, b date.Date) bool { return a == b }),
	cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }),
}

var (
	surrealOnce sync.Once
	surrealAddr string
	surrealErr  error
)

// startSurrealDB starts one SurrealDB container for the whole test run.
func startSurrealDB(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping SurrealDB integration test in short mode")
	}
	surrealOnce.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.2.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(60 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			surrealErr = err
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			surrealErr = err
			return
		}
		port, err := container.MappedPort(ctx, "8000/tcp")
		if err != nil {
			surrealErr = err
			return
		}
		surrealAddr = fmt.Sprintf("ws://%s:%s/rpc", host, port.Port())
	})
	if surrealErr != nil {
		t.Skipf("SurrealDB container unavailable: %v", surrealErr)
	}
	return surrealAddr
}

// testStore returns a store on a database of its own.
func testStore(t *testing.T) *Store {
	t.Helper()
	addr := startSurrealDB(t)
	dbName := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := Config{Address: addr, Namespace: "mfm_test", Database: dbName, Username: "root", Password: "root"}
	s, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func sampleState() mfm.State {
	at := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	jan1 := date.New(2025, time.January, 1)
	return mfm.State{
		Lots: []mfm.Lot{
			{
				Symbol: "AAPL", Sequence: 1, Date: jan1, Amount: 50,
				UnitCost: decimal.RequireFromString("150"), Instrument: mfm.EquityLot{},
				Valuation: mfm.Valuation{
					Cost:           decimal.RequireFromString("7500"),
					MarketValueUSD: decimal.RequireFromString("8250"),
					MarketValueILS: decimal.RequireFromString("33000"),
					ProfitUSD:      decimal.RequireFromString("750"),
					ProfitILS:      decimal.RequireFromString("3000"),
					ProfitPercent:  decimal.RequireFromString("10"),
					PercentDefined: true,
					At:             at,
				},
			},
			{
				Symbol: "TEVA", Sequence: 1, Date: jan1, Amount: 1,
				UnitCost: decimal.RequireFromString("19500"), Instrument: mfm.FundLot{Ref: "5109889"},
			},
		},
		Snapshots: []mfm.Snapshot{{
			Date:         jan1,
			Portfolio:    mfm.Amounts{ILS: decimal.RequireFromString("33195"), USD: decimal.RequireFromString("8298.75")},
			TotalAssets:  mfm.Amounts{ILS: decimal.RequireFromString("34195"), USD: decimal.RequireFromString("8548.75")},
			ProfitILS:    decimal.RequireFromString("3000"),
			BankCashFlow: decimal.RequireFromString("1000"),
		}},
		Foreign: []mfm.ForeignBalance{{
			Currency: "EUR", Account: mfm.Trader,
			Amount: decimal.RequireFromString("100"), ILS: decimal.RequireFromString("390"), Updated: at,
		}},
		Modified: mfm.LastModified{mfm.MarkerStocks: at},
	}
}

func TestRows(t *testing.T) {
	st := sampleState()
	for _, l := range st.Lots {
		got, err := newLotRow(l).lot()
		require.NoError(t, err)
		if diff := cmp.Diff(l, got, cmpOpts); diff != "" {
			t.Errorf("lot row mismatch (-want +got):\n%s", diff)
		}
	}
	got, err := newSnapshotRow(st.Snapshots[0]).snapshot()
	require.NoError(t, err)
	if diff := cmp.Diff(st.Snapshots[0], got, cmpOpts); diff != "" {
		t.Errorf("snapshot row mismatch (-want +got):\n%s", diff)
	}
	if got.ProfitPercent.Valid {
		t.Error("an undefined profit percent must stay undefined")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, empty.Lots)

	want := sampleState()
	require.NoError(t, s.SaveLots(ctx, "AAPL", want.Lots[:1]))
	require.NoError(t, s.SaveLots(ctx, "TEVA", want.Lots[1:]))
	require.NoError(t, s.SaveSnapshot(ctx, want.Snapshots[0]))
	require.NoError(t, s.SaveForeign(ctx, want.Foreign[0]))
	require.NoError(t, s.SaveModified(ctx, want.Modified))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpOpts); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	// replacing the lots of a symbol, then deleting them
	require.NoError(t, s.SaveLots(ctx, "TEVA", nil))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Lots, 1)
	require.Equal(t, "AAPL", got.Lots[0].Symbol)
}

func TestStore_SnapshotUpsert(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	snap := sampleState().Snapshots[0]
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	snap.BankCashFlow = decimal.RequireFromString("2000")
	snap.ProfitPercent = decimal.NewNullDecimal(decimal.RequireFromString("9.5"))
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Snapshots, 1)
	if diff := cmp.Diff(snap, got.Snapshots[0], cmpOpts); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
