package hojas

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// mainFields are the columns a form body may set directly. Any other key
// belongs in detalles.
var mainFields = map[string]bool{
	"numero_hr":           true,
	"referencia":          true,
	"procedencia":         true,
	"nombre_solicitante":  true,
	"telefono_celular":    true,
	"fecha_documento":     true,
	"fecha_limite":        true,
	"cite":                true,
	"numero_fojas":        true,
	"prioridad":           true,
	"estado":              true,
	"estado_cumplimiento": true,
	"observaciones":       true,
	"ubicacion_actual":    true,
	"responsable_actual":  true,
	"unidad_actual_id":    true,
}

// serverFields are never taken from a request body.
var serverFields = map[string]bool{
	"id":                    true,
	"fecha_ingreso":         true,
	"usuario_creador_id":    true,
	"fecha_completado":      true,
	"activo":                true,
	"created_at":            true,
	"updated_at":            true,
	"dias_para_vencimiento": true,
	"alerta_vencimiento":    true,
	"detalles":              true,
}

// splitBody separates a form body into a patch of main fields and the
// remaining detail keys. A nested "detalles" object is merged into the
// detail keys.
func splitBody(body map[string]any) (Patch, map[string]any, error) {
	var p Patch
	extras := map[string]any{}
	if nested, ok := body["detalles"].(map[string]any); ok {
		for k, v := range nested {
			if !mainFields[k] && !serverFields[k] {
				extras[k] = v
			}
		}
	}
	for k, v := range body {
		switch {
		case mainFields[k]:
			if err := setField(&p, k, v); err != nil {
				return Patch{}, nil, err
			}
		case serverFields[k]:
		default:
			extras[k] = v
		}
	}
	return p, extras, nil
}

func setField(p *Patch, key string, v any) error {
	switch key {
	case "numero_hr":
		p.NumeroHR = strPtr(v)
	case "referencia":
		p.Referencia = strPtr(v)
	case "procedencia":
		p.Procedencia = strPtr(v)
	case "nombre_solicitante":
		p.NombreSolicitante = strPtr(v)
	case "telefono_celular":
		p.TelefonoCelular = strPtr(v)
	case "cite":
		p.Cite = strPtr(v)
	case "observaciones":
		p.Observaciones = strPtr(v)
	case "ubicacion_actual":
		p.UbicacionActual = strPtr(v)
	case "responsable_actual":
		p.ResponsableActual = strPtr(v)
	case "prioridad":
		s := strings.ToLower(toString(v))
		p.Prioridad = &s
	case "fecha_documento", "fecha_limite":
		d, ok := normalizeDate(toString(v))
		if !ok {
			return fmt.Errorf("%s debe tener formato YYYY-MM-DD: %w", key, ErrInvalidInput)
		}
		if key == "fecha_documento" {
			p.FechaDocumento = &d
		} else {
			p.FechaLimite = &d
		}
	case "numero_fojas":
		n, ok := toInt(v)
		if !ok || n < 0 {
			return fmt.Errorf("numero_fojas debe ser un número: %w", ErrInvalidInput)
		}
		p.NumeroFojas = &n
	case "unidad_actual_id":
		n, ok := toInt(v)
		if !ok || n < 0 {
			return fmt.Errorf("unidad_actual_id inválido: %w", ErrInvalidInput)
		}
		id := int64(n)
		p.UnidadActualID = &id
	case "estado":
		if toString(v) == "" {
			return nil
		}
		e, ok := ParseEstado(toString(v))
		if !ok {
			return fmt.Errorf("estado inválido: %w", ErrInvalidInput)
		}
		p.Estado = &e
	case "estado_cumplimiento":
		s := strings.ToLower(toString(v))
		if s == "" {
			return nil
		}
		if !ValidCumplimiento(s) {
			return fmt.Errorf("estado_cumplimiento inválido: %w", ErrInvalidInput)
		}
		p.EstadoCumplimiento = &s
	}
	return nil
}

func (p Patch) empty() bool {
	return p.NumeroHR == nil && p.Referencia == nil && p.Procedencia == nil &&
		p.NombreSolicitante == nil && p.TelefonoCelular == nil && p.FechaDocumento == nil &&
		p.FechaLimite == nil && p.Cite == nil && p.NumeroFojas == nil && p.Prioridad == nil &&
		p.Estado == nil && p.EstadoCumplimiento == nil && p.Observaciones == nil &&
		p.UbicacionActual == nil && p.ResponsableActual == nil && p.UnidadActualID == nil &&
		p.Detalles == nil && p.FechaCompletado == nil
}

func strPtr(v any) *string {
	s := toString(v)
	return &s
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		return int(t), t == float64(int(t))
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, true
		}
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}
