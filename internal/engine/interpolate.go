package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Interpolate replaces {{path}} tokens with values looked up by dotted path
// in scope. Tokens that do not resolve are left as written.
func Interpolate(template string, scope map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		path := placeholderRe.FindStringSubmatch(token)[1]
		v, ok := model.LookupPath(scope, path)
		if !ok {
			return token
		}
		return formatValue(v)
	})
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(math.Round(val*100)/100, 'f', -1, 64)
	case float32:
		return formatValue(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format("02/01/2006")
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

// buildScope layers match bindings over the context so a rule's message
// refers to the entry that triggered it.
func buildScope(rc *model.RuleContext, bindings map[string]any) map[string]any {
	scope := rc.Scope()
	for k, v := range bindings {
		scope[k] = v
	}
	return scope
}
