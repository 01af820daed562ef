package expand

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// PlaceholderError reports a path template naming a placeholder that is
// unknown or has no value for the request.
type PlaceholderError struct {
	Template string
	Name     string
	Reason   string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("placeholder {%s} in path '%s': %s", e.Name, e.Template, e.Reason)
}

// placeholderNames is the closed set a path template may use.
var placeholderNames = map[string]bool{
	"wy": true, "wy_plus1": true, "wy_minus1": true,
	"wy_daynum": true, "wy_hour": true, "wy_start_24hr": true, "wy_end_24hr": true,
	"wy_mdy": true, "mdy": true, "ymd": true, "mmddyyyy": true, "month": true,
	"site_id": true, "scenario_id": true, "domain_path": true,
	"scenario_from_date": true, "scenario_to_date": true,
	"run_number": true, "level": true, "dataset_var": true,
}

// WaterYear returns the water year containing t and the October 1 it started on.
func WaterYear(t time.Time) (int, time.Time) {
	if t.Month() >= time.October {
		return t.Year() + 1, time.Date(t.Year(), time.October, 1, 0, 0, 0, 0, t.Location())
	}
	return t.Year(), time.Date(t.Year()-1, time.October, 1, 0, 0, 0, 0, t.Location())
}

// Placeholders computes the substitution values for one time step of an
// entry. Time placeholders are absent when t is nil, and request values
// are absent when blank.
func Placeholders(entry *catalog.Row, req Request, t *time.Time) map[string]any {
	values := make(map[string]any)
	if v := entry.String("dataset_var"); v != "" {
		values["dataset_var"] = v
	}
	for name, v := range map[string]string{
		"site_id":            req.SiteID,
		"scenario_id":        req.ScenarioID,
		"domain_path":        req.DomainPath,
		"scenario_from_date": req.ScenarioFromDate,
		"scenario_to_date":   req.ScenarioToDate,
		"run_number":         req.RunNumber,
		"level":              req.Level,
	} {
		if v != "" {
			values[name] = v
		}
	}
	if t == nil {
		return values
	}

	wy, start := WaterYear(*t)
	since := t.Sub(start)
	days := int(since.Hours()) / 24
	values["wy"] = wy
	values["wy_plus1"] = wy + 1
	values["wy_minus1"] = wy - 1
	values["wy_daynum"] = days + 1
	values["wy_hour"] = int(since.Hours()) + 1
	values["wy_start_24hr"] = days*24 + 1
	values["wy_end_24hr"] = days*24 + 24
	values["wy_mdy"] = t.Format("01022006")
	values["mdy"] = t.Format("01022006")
	values["mmddyyyy"] = t.Format("01022006")
	values["ymd"] = t.Format("20060102")
	values["month"] = int(t.Month())
	return values
}

// Substitute fills {name} and {name:spec} placeholders in template.
// Supported specs are a zero-padded or plain width followed by d or s,
// such as 03d, 05d, d and s. {{ and }} produce literal braces.
func Substitute(template string, values map[string]any) (string, error) {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", &PlaceholderError{Template: template, Name: template[i+1:], Reason: "unterminated placeholder"}
			}
			field := template[i+1 : i+end]
			name, spec, _ := strings.Cut(field, ":")
			if !placeholderNames[name] {
				return "", &PlaceholderError{Template: template, Name: name, Reason: "unknown placeholder"}
			}
			v, ok := values[name]
			if !ok {
				return "", &PlaceholderError{Template: template, Name: name, Reason: "no value for this request"}
			}
			s, err := format(v, spec)
			if err != nil {
				return "", &PlaceholderError{Template: template, Name: name, Reason: err.Error()}
			}
			b.WriteString(s)
			i += end
		case c == '}':
			return "", &PlaceholderError{Template: template, Name: "}", Reason: "single '}' encountered"}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func format(v any, spec string) (string, error) {
	if spec == "" {
		return cast.ToStringE(v)
	}
	verb := spec[len(spec)-1]
	width := spec[:len(spec)-1]
	zero := strings.HasPrefix(width, "0")
	n := 0
	if width != "" {
		var err error
		if n, err = strconv.Atoi(width); err != nil {
			return "", fmt.Errorf("bad format spec %q", spec)
		}
	}
	switch verb {
	case 'd':
		var i int
		var err error
		if s, ok := v.(string); ok {
			i, err = strconv.Atoi(s)
		} else {
			i, err = cast.ToIntE(v)
		}
		if err != nil {
			return "", fmt.Errorf("value %v is not an integer", v)
		}
		if zero {
			return fmt.Sprintf("%0*d", n, i), nil
		}
		return fmt.Sprintf("%*d", n, i), nil
	case 's':
		s, err := cast.ToStringE(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%-*s", n, s), nil
	}
	return "", fmt.Errorf("bad format spec %q", spec)
}
