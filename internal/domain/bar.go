package domain

import "time"

// TradeEvent es un trade ejecutado del time & sales.
// Size ya viene dividido por el size multiplier del instrumento.
type TradeEvent struct {
	Price float64
	Size  float64
	IsBuy bool // true = el agresor compró (levantó el ask)
	Time  time.Time
}

// TickMessage es un trade tal como lo publica el feed, con el símbolo.
type TickMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	IsBuy  bool    `json:"is_buy"`
	TS     int64   `json:"ts"` // unix millis

	// Niveles enteros opcionales (precio en ticks, tamaño en lotes mínimos).
	// Si vienen, el analizador los usa directamente y evita el redondeo.
	PriceLevel int64 `json:"price_level,omitempty"`
	SizeLevel  int64 `json:"size_level,omitempty"`
}

// HasLevels indica si el mensaje trae niveles enteros.
func (m TickMessage) HasLevels() bool {
	return m.PriceLevel > 0 && m.SizeLevel > 0
}

// Event convierte el mensaje del feed en un TradeEvent.
func (m TickMessage) Event() TradeEvent {
	var ts time.Time
	if m.TS > 0 {
		ts = time.UnixMilli(m.TS).UTC()
	}
	return TradeEvent{Price: m.Price, Size: m.Size, IsBuy: m.IsBuy, Time: ts}
}

// Bar es una fila OHLCV normalizada con volumen comprador y vendedor.
// Time puede ser cero cuando la fuente no trae fechas.
type Bar struct {
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	BuyVolume  float64
	SellVolume float64
}

// Range devuelve high - low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Delta devuelve buy_volume - sell_volume.
func (b Bar) Delta() float64 {
	return b.BuyVolume - b.SellVolume
}

// BarSnapshot es una barra cerrada por el analizador. Inmutable una vez creada.
type BarSnapshot struct {
	Open        float64
	High        float64
	Low         float64
	Close       float64
	BuyVolume   float64
	SellVolume  float64
	Delta       float64 // BuyVolume - SellVolume
	TotalVolume float64 // BuyVolume + SellVolume
	TradeCount  int
	BigBuys     int
	BigSells    int
}

// AbsorptionState describe volumen grande negociado sin que el precio se mueva.
type AbsorptionState struct {
	LastPrice      float64
	BuyVolume      float64 // volumen agresor comprador acumulado dentro de la banda
	SellVolume     float64 // volumen agresor vendedor acumulado dentro de la banda
	UnchangedTicks int
	Bullish        bool // ventas absorbidas sin caída de precio
	Bearish        bool // compras absorbidas sin subida de precio
}
