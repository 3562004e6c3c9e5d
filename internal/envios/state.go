package envios

import "strings"

// Estado is the lifecycle state of a dispatch.
type Estado string

const (
	EstadoPendiente  Estado = "pendiente"
	EstadoEnviado    Estado = "enviado"
	EstadoRecibido   Estado = "recibido"
	EstadoRespondido Estado = "respondido"
	EstadoRedirigido Estado = "redirigido"
)

// transitions lists the allowed targets of each state. respondido and
// redirigido are terminal.
var transitions = map[Estado][]Estado{
	EstadoPendiente: {EstadoEnviado},
	EstadoEnviado:   {EstadoRecibido, EstadoRedirigido},
	EstadoRecibido:  {EstadoRespondido, EstadoRedirigido},
}

// ParseEstado validates a dispatch state.
func ParseEstado(raw string) (Estado, bool) {
	e := Estado(strings.ToLower(strings.TrimSpace(raw)))
	switch e {
	case EstadoPendiente, EstadoEnviado, EstadoRecibido, EstadoRespondido, EstadoRedirigido:
		return e, true
	}
	return "", false
}

// CanTransition reports whether a dispatch may move from one state to another.
func CanTransition(from, to Estado) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves e.
func (e Estado) Terminal() bool {
	return len(transitions[e]) == 0
}
