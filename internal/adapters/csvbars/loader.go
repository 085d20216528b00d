// Package csvbars carga barras OHLCV + buy/sell volume desde CSV.
//
// Columnas obligatorias: open, high, low, close (cabecera case-insensitive).
// Opcionales: time|timestamp|ts|datetime|date, buy_volume, sell_volume, symbol.
// Sin buy/sell volume se asume 50 por lado.
package csvbars

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

const (
	defaultSideVolume = 50.0

	// Si el volumen medio por barra supera ScaleTrigger, cada barra se escala
	// a ~ScaleTarget conservando el ratio buy/sell.
	ScaleTrigger = 500.0
	ScaleTarget  = 120.0
)

var required = []string{"open", "high", "low", "close"}

// Loader implementa ports.BarProvider leyendo un fichero CSV.
type Loader struct {
	path  string
	scale bool
}

// New crea un Loader. Si scale es true, aplica ScaleVolume tras leer.
func New(path string, scale bool) *Loader {
	return &Loader{path: path, scale: scale}
}

// LoadBars lee el fichero. Si el CSV trae columna symbol, filtra por symbol
// (vacío = todas las filas).
func (l *Loader) LoadBars(ctx context.Context, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("csvbars.LoadBars: open %q: %w", l.path, err)
	}
	defer f.Close()

	bars, err := parse(ctx, f, symbol)
	if err != nil {
		return nil, fmt.Errorf("csvbars.LoadBars: %s: %w", l.path, err)
	}
	if l.scale && ScaleVolume(bars, ScaleTrigger, ScaleTarget) {
		slog.Info("scaled bar volume", "path", l.path, "target_per_bar", ScaleTarget)
	}
	slog.Debug("bars loaded", "path", l.path, "bars", len(bars))
	return bars, nil
}

// Parse lee barras desde r sin filtrar por símbolo ni escalar.
func Parse(r io.Reader) ([]domain.Bar, error) {
	return parse(context.Background(), r, "")
}

func parse(ctx context.Context, r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var (
		bars    []domain.Bar
		skipped int
		line    = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line%10000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		row := rowReader{cols: cols, rec: rec}

		if symbol != "" {
			if s := row.str("symbol"); s != "" && !strings.EqualFold(s, symbol) {
				continue
			}
		}
		bar, ok := row.bar()
		if !ok {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}
	if skipped > 0 {
		slog.Warn("csv rows skipped", "rows", skipped)
	}
	return bars, nil
}

// ScaleVolume escala buy/sell volume de cada barra a ~target cuando el
// volumen medio supera trigger. Conserva el ratio y deja al menos 1 por lado.
// Devuelve true si escaló.
func ScaleVolume(bars []domain.Bar, trigger, target float64) bool {
	if len(bars) == 0 {
		return false
	}
	var sum float64
	for _, b := range bars {
		sum += b.BuyVolume + b.SellVolume
	}
	if sum/float64(len(bars)) <= trigger {
		return false
	}
	for i := range bars {
		total := bars[i].BuyVolume + bars[i].SellVolume
		if total == 0 {
			total = 1
		}
		scale := min(target/total, 1)
		bars[i].BuyVolume = max(bars[i].BuyVolume*scale, 1)
		bars[i].SellVolume = max(bars[i].SellVolume*scale, 1)
	}
	return true
}

type rowReader struct {
	cols map[string]int
	rec  []string
}

func (r rowReader) str(keys ...string) string {
	for _, k := range keys {
		if i, ok := r.cols[k]; ok && i < len(r.rec) {
			if v := strings.TrimSpace(r.rec[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func (r rowReader) float(key string) (float64, bool) {
	v := r.str(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func (r rowReader) bar() (domain.Bar, bool) {
	var b domain.Bar
	var ok bool
	if b.Open, ok = r.float("open"); !ok {
		return b, false
	}
	if b.High, ok = r.float("high"); !ok {
		return b, false
	}
	if b.Low, ok = r.float("low"); !ok {
		return b, false
	}
	if b.Close, ok = r.float("close"); !ok {
		return b, false
	}
	if b.BuyVolume, ok = r.float("buy_volume"); !ok {
		b.BuyVolume = defaultSideVolume
	}
	if b.SellVolume, ok = r.float("sell_volume"); !ok {
		b.SellVolume = defaultSideVolume
	}
	if ts := r.str("time", "timestamp", "ts", "datetime", "date"); ts != "" {
		t, err := parseTime(ts)
		if err != nil {
			return b, false
		}
		b.Time = t
	}
	return b, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime acepta los layouts de timeLayouts o unix en segundos/millis.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %s", s)
}
