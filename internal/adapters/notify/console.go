package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y renderiza resultados de backtest.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifySignal imprime una señal en una línea.
func (c *Console) NotifySignal(_ context.Context, sig domain.SignalRecord) error {
	ts := sig.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s str=%.2f @%.2f sl=%.2f tp1=%.2f tp2=%.2f",
		ts.Format("15:04:05"), sig.Symbol, strings.ToUpper(sig.Side.String()),
		sig.Strength, sig.Price, sig.StopPrice, sig.Target1, sig.Target2)
	if sig.Allowed {
		fmt.Fprintf(&sb, " x%d → %s", sig.Size, sig.PositionID)
	} else {
		fmt.Fprintf(&sb, " blocked:%s", sig.RiskReason)
	}
	fmt.Fprintf(&sb, " (%s)", sig.Reason)

	_, err := fmt.Fprintln(c.out, sb.String())
	return err
}

// PrintBacktest imprime el resumen del run y, en modo tabla, los últimos
// maxTrades trades del ledger.
func (c *Console) PrintBacktest(res domain.BacktestResult, maxTrades int) {
	if !c.table {
		fmt.Fprintf(c.out, "trades=%d win=%.1f%% pf=%.2f pnl=$%.2f dd=$%.2f (%.2f%%) sharpe=%.2f\n",
			res.TotalTrades, res.WinRate, res.ProfitFactor, res.TotalPnL(),
			res.MaxDrawdown, res.MaxDrawdownPct, res.SharpeRatio)
		return
	}

	fmt.Fprintf(c.out, "\n=== BACKTEST %s ===\n", res.RunID)
	summary := tablewriter.NewWriter(c.out)
	summary.Header("Metric", "Value")
	summary.Append("Initial balance", fmt.Sprintf("$%.2f", res.InitialBalance))
	summary.Append("Final balance", fmt.Sprintf("$%.2f", res.FinalBalance))
	summary.Append("Total P&L", fmt.Sprintf("$%.2f", res.TotalPnL()))
	summary.Append("Trades", fmt.Sprintf("%d", res.TotalTrades))
	summary.Append("Win rate", fmt.Sprintf("%.1f%%", res.WinRate))
	summary.Append("Profit factor", fmt.Sprintf("%.2f", res.ProfitFactor))
	summary.Append("Max drawdown", fmt.Sprintf("$%.2f (%.2f%%)", res.MaxDrawdown, res.MaxDrawdownPct))
	summary.Append("Sharpe", fmt.Sprintf("%.2f", res.SharpeRatio))
	summary.Render()

	if len(res.Trades) == 0 || maxTrades <= 0 {
		return
	}
	trades := res.Trades[max(0, len(res.Trades)-maxTrades):]
	fmt.Fprintf(c.out, "\nLast %d trades:\n", len(trades))
	c.printTrades(trades)
}

func (c *Console) printTrades(trades []domain.BacktestTrade) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Entry", "Exit", "Side", "Size", "Entry$", "Exit$", "Ticks", "P&L", "Reason")
	for _, t := range trades {
		table.Append(
			fmt.Sprintf("%d", t.EntryBar),
			fmt.Sprintf("%d", t.ExitBar),
			t.Side.String(),
			fmt.Sprintf("%d", t.Size),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%.0f", t.PnLTicks),
			fmt.Sprintf("$%.2f", t.PnL),
			string(t.ExitReason),
		)
	}
	table.Render()
}

// PrintRuns imprime el histórico de backtests guardados.
func (c *Console) PrintRuns(runs []domain.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "no runs stored")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Run", "Date", "Symbol", "Bars", "Trades", "Win%", "PF", "P&L", "MaxDD")
	for _, r := range runs {
		res := r.Result
		table.Append(
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Symbol,
			fmt.Sprintf("%d", r.Bars),
			fmt.Sprintf("%d", res.TotalTrades),
			fmt.Sprintf("%.1f", res.WinRate),
			fmt.Sprintf("%.2f", res.ProfitFactor),
			fmt.Sprintf("$%.2f", res.TotalPnL()),
			fmt.Sprintf("$%.2f", res.MaxDrawdown),
		)
	}
	table.Render()
}

// PrintFeatures imprime la señal de la última barra y su FeatureMap ordenado por clave.
func (c *Console) PrintFeatures(symbol string, side domain.Side, strength, price float64, feats domain.FeatureMap) {
	fmt.Fprintf(c.out, "%s %s strength=%.2f last=%.2f reason=%s\n",
		symbol, strings.ToUpper(side.String()), strength, price, feats.Reason())
	if !c.table {
		return
	}
	keys := make([]string, 0, len(feats))
	for k := range feats {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	table := tablewriter.NewWriter(c.out)
	table.Header("Feature", "Value")
	for _, k := range keys {
		table.Append(k, formatFeature(feats[k]))
	}
	table.Render()
}

func formatFeature(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", x)
	default:
		return fmt.Sprint(x)
	}
}

// shortID recorta un UUID a sus primeros 8 caracteres.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
