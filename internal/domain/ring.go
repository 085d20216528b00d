package domain

// Ring es un buffer circular de capacidad fija: al llenarse sobreescribe
// el elemento más antiguo. No es seguro para uso concurrente.
type Ring[T any] struct {
	buf  []T
	head int // próxima posición de escritura
	n    int
}

// NewRing crea un Ring con la capacidad dada (mínimo 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push añade v, desalojando el más antiguo si el buffer está lleno.
func (r *Ring[T]) Push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

// Len devuelve cuántos elementos hay almacenados.
func (r *Ring[T]) Len() int { return r.n }

// Cap devuelve la capacidad máxima.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At devuelve el elemento i en orden cronológico (0 = el más antiguo).
func (r *Ring[T]) At(i int) T {
	start := (r.head - r.n + len(r.buf)) % len(r.buf)
	return r.buf[(start+i)%len(r.buf)]
}

// Last devuelve una copia de los últimos n elementos en orden cronológico.
func (r *Ring[T]) Last(n int) []T {
	if n > r.n {
		n = r.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(r.n - n + i)
	}
	return out
}

// Reset vacía el buffer sin reasignar memoria.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.head = 0
	r.n = 0
}
