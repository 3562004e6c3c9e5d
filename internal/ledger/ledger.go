// Package ledger manages the routing sections stored in a document's
// detalles object.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultCapacity is the number of routing sections printed on a hoja de ruta.
const DefaultCapacity = 10

// SectionsKey is the detalles key holding the structured sections.
const SectionsKey = "secciones_adicionales"

var legacyPrefixes = []string{
	"fecha_enviado_",
	"destino_",
	"destinos_",
	"instrucciones_adicionales_",
	"fecha_recepcion_",
}

// Section is one hop in the routing history of a document.
type Section struct {
	Seccion         int      `json:"seccion"`
	FechaEnviado    string   `json:"fecha_enviado,omitempty"`
	Destino         string   `json:"destino,omitempty"`
	Destinos        []string `json:"destinos,omitempty"`
	Instrucciones   string   `json:"instrucciones_adicionales,omitempty"`
	FechaRecepcion  string   `json:"fecha_recepcion,omitempty"`
	Respuesta       string   `json:"respuesta,omitempty"`
	RedirigidoDesde string   `json:"redirigido_desde,omitempty"`
}

func (s Section) free() bool {
	return s.FechaEnviado == "" && s.Destino == "" && s.FechaRecepcion == "" && s.Respuesta == ""
}

// empty reports whether s carries no data at all. A section holding only
// pre-filled instructions or destinations is free but not empty.
func (s Section) empty() bool {
	return s.free() && s.Instrucciones == "" && len(s.Destinos) == 0 && s.RedirigidoDesde == ""
}

// Result reports which section a mutation touched. Seccion is zero when
// nothing was written.
type Result struct {
	Seccion int
	Full    bool
	NoMatch bool
}

// SeccionValue returns the section index, or nil when nothing was written.
func (r Result) SeccionValue() *int {
	if r.Seccion == 0 {
		return nil
	}
	v := r.Seccion
	return &v
}

// Ledger is the normalized set of sections of one document.
type Ledger struct {
	capacity int
	sections map[int]*Section
}

// New returns an empty ledger.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity, sections: make(map[int]*Section)}
}

// Parse builds a ledger from a detalles object. Legacy flattened keys
// (destino_3, fecha_enviado_3, ...) fill whatever the array form leaves empty.
// A legacy slot with any non-empty field is kept.
func Parse(details map[string]any, capacity int) *Ledger {
	l := New(capacity)
	for _, raw := range sectionItems(details[SectionsKey]) {
		s, ok := decodeSection(raw)
		if !ok || s.Seccion < 1 || s.Seccion > l.capacity {
			continue
		}
		if existing, dup := l.sections[s.Seccion]; dup {
			merge(existing, s)
			continue
		}
		cp := s
		l.sections[s.Seccion] = &cp
	}

	for i := 1; i <= l.capacity; i++ {
		legacy := Section{
			Seccion:        i,
			FechaEnviado:   stringValue(details["fecha_enviado_"+strconv.Itoa(i)]),
			Destino:        stringValue(details["destino_"+strconv.Itoa(i)]),
			Destinos:       stringList(details["destinos_"+strconv.Itoa(i)]),
			Instrucciones:  stringValue(details["instrucciones_adicionales_"+strconv.Itoa(i)]),
			FechaRecepcion: stringValue(details["fecha_recepcion_"+strconv.Itoa(i)]),
		}
		if legacy.empty() {
			continue
		}
		if existing, ok := l.sections[i]; ok {
			merge(existing, legacy)
			continue
		}
		l.sections[i] = &legacy
	}
	return l
}

// Capacity returns the maximum number of sections.
func (l *Ledger) Capacity() int { return l.capacity }

// Sections returns a copy of the sections ordered by index.
func (l *Ledger) Sections() []Section {
	out := make([]Section, 0, len(l.sections))
	for _, s := range l.sections {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seccion < out[j].Seccion })
	return out
}

// Section returns the section at index i.
func (l *Ledger) Section(i int) (Section, bool) {
	s, ok := l.sections[i]
	if !ok {
		return Section{}, false
	}
	return *s, true
}

// NextFree returns the first index with no send date, destination,
// received date or response. It returns 0 when the ledger is full.
func (l *Ledger) NextFree() int {
	for i := 1; i <= l.capacity; i++ {
		s, ok := l.sections[i]
		if !ok || s.free() {
			return i
		}
	}
	return 0
}

// SendInput carries the data written by a send-to-unit action.
type SendInput struct {
	Fecha         string
	Destino       string
	Destinos      []string
	Instrucciones string
}

// Send records a dispatch in the next free section.
func (l *Ledger) Send(in SendInput) Result {
	idx := l.NextFree()
	if idx == 0 {
		return Result{Full: true}
	}
	s := l.slot(idx)
	s.FechaEnviado = in.Fecha
	s.Destino = in.Destino
	if len(in.Destinos) > 0 {
		s.Destinos = append([]string(nil), in.Destinos...)
	}
	if in.Instrucciones != "" {
		s.Instrucciones = in.Instrucciones
	}
	return Result{Seccion: idx}
}

// Receive stamps the received date on the latest section addressed to
// unit that has not been received yet.
func (l *Ledger) Receive(unit, fecha string) Result {
	needle := strings.ToLower(strings.TrimSpace(unit))
	if needle == "" {
		return Result{NoMatch: true}
	}
	for i := l.capacity; i >= 1; i-- {
		s, ok := l.sections[i]
		if !ok || s.free() || s.FechaRecepcion != "" {
			continue
		}
		if addressedTo(*s, needle) {
			s.FechaRecepcion = fecha
			return Result{Seccion: i}
		}
	}
	return Result{NoMatch: true}
}

// Respond writes a unit's response into the next free section.
func (l *Ledger) Respond(unit, respuesta, fecha string) Result {
	idx := l.NextFree()
	if idx == 0 {
		return Result{Full: true}
	}
	s := l.slot(idx)
	s.FechaEnviado = fecha
	s.Destino = "RESPUESTA de " + unit
	s.Instrucciones = respuesta
	s.Respuesta = respuesta
	return Result{Seccion: idx}
}

// RedirectInput carries the data written by a redirect action.
type RedirectInput struct {
	Fecha         string
	Destino       string
	Destinos      []string
	Instrucciones string
	Desde         string
}

// Redirect records a redirection in the next free section.
func (l *Ledger) Redirect(in RedirectInput) Result {
	idx := l.NextFree()
	if idx == 0 {
		return Result{Full: true}
	}
	s := l.slot(idx)
	s.FechaEnviado = in.Fecha
	s.Destino = in.Destino
	if len(in.Destinos) > 0 {
		s.Destinos = append([]string(nil), in.Destinos...)
	}
	s.Instrucciones = in.Instrucciones
	s.RedirigidoDesde = in.Desde
	return Result{Seccion: idx}
}

// Apply returns a copy of details with the sections written under
// secciones_adicionales and the legacy flattened keys removed.
func (l *Ledger) Apply(details map[string]any) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		if isLegacyKey(k) {
			continue
		}
		out[k] = v
	}
	sections := l.Sections()
	items := make([]any, 0, len(sections))
	for _, s := range sections {
		items = append(items, s.toMap())
	}
	out[SectionsKey] = items
	return out
}

func (l *Ledger) slot(idx int) *Section {
	s, ok := l.sections[idx]
	if !ok {
		s = &Section{Seccion: idx}
		l.sections[idx] = s
	}
	return s
}

func (s Section) toMap() map[string]any {
	m := map[string]any{"seccion": s.Seccion}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("fecha_enviado", s.FechaEnviado)
	put("destino", s.Destino)
	put("instrucciones_adicionales", s.Instrucciones)
	put("fecha_recepcion", s.FechaRecepcion)
	put("respuesta", s.Respuesta)
	put("redirigido_desde", s.RedirigidoDesde)
	if len(s.Destinos) > 0 {
		list := make([]any, len(s.Destinos))
		for i, d := range s.Destinos {
			list[i] = d
		}
		m["destinos"] = list
	}
	return m
}

func addressedTo(s Section, needle string) bool {
	if strings.Contains(strings.ToLower(s.Destino), needle) {
		return true
	}
	for _, d := range s.Destinos {
		if strings.Contains(strings.ToLower(d), needle) {
			return true
		}
	}
	return false
}

// merge fills empty fields of dst from src.
func merge(dst *Section, src Section) {
	if dst.FechaEnviado == "" {
		dst.FechaEnviado = src.FechaEnviado
	}
	if dst.Destino == "" {
		dst.Destino = src.Destino
	}
	if len(dst.Destinos) == 0 {
		dst.Destinos = src.Destinos
	}
	if dst.Instrucciones == "" {
		dst.Instrucciones = src.Instrucciones
	}
	if dst.FechaRecepcion == "" {
		dst.FechaRecepcion = src.FechaRecepcion
	}
	if dst.Respuesta == "" {
		dst.Respuesta = src.Respuesta
	}
	if dst.RedirigidoDesde == "" {
		dst.RedirigidoDesde = src.RedirigidoDesde
	}
}

func isLegacyKey(k string) bool {
	for _, p := range legacyPrefixes {
		if rest, ok := strings.CutPrefix(k, p); ok {
			if _, err := strconv.Atoi(rest); err == nil {
				return true
			}
		}
	}
	return false
}

func sectionItems(v any) []any {
	switch items := v.(type) {
	case []any:
		return items
	case []map[string]any:
		out := make([]any, len(items))
		for i := range items {
			out[i] = items[i]
		}
		return out
	case []Section:
		out := make([]any, len(items))
		for i := range items {
			out[i] = items[i].toMap()
		}
		return out
	case string:
		var decoded []any
		if err := json.Unmarshal([]byte(items), &decoded); err == nil {
			return decoded
		}
	}
	return nil
}

func decodeSection(v any) (Section, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Section{}, false
	}
	idx, ok := intValue(m["seccion"])
	if !ok {
		return Section{}, false
	}
	return Section{
		Seccion:         idx,
		FechaEnviado:    stringValue(m["fecha_enviado"]),
		Destino:         stringValue(m["destino"]),
		Destinos:        stringList(m["destinos"]),
		Instrucciones:   stringValue(m["instrucciones_adicionales"]),
		FechaRecepcion:  stringValue(m["fecha_recepcion"]),
		Respuesta:       stringValue(m["respuesta"]),
		RedirigidoDesde: stringValue(m["redirigido_desde"]),
	}, true
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64, int, int64, bool, json.Number:
		return fmt.Sprint(s)
	}
	return ""
}

func stringList(v any) []string {
	var out []string
	switch items := v.(type) {
	case []string:
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range items {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(items); s != "" {
			out = append(out, s)
		}
	}
	return out
}
