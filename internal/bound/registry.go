package bound

import (
	"fmt"
	"sort"
	"strings"

	"imprint/domain/core"
)

type constructor func(params map[string]float64) (Family, error)

var families = map[string]constructor{
	"normal":       newNormal,
	"normal2":      newNormal2,
	"scaled_chisq": newScaledChiSq,
	"binomial":     newBinomial,
	"exponential":  newExponential,
}

// Get resolves a family by name and parameterizes it once.
func Get(name string, params map[string]float64) (Family, error) {
	ctor, ok := families[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, core.NewUnknownFamilyError(name)
	}
	return ctor(params)
}

// Names lists the registered families in sorted order.
func Names() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readParams copies the allowed keys out of params and rejects anything else.
func readParams(family string, params map[string]float64, defaults map[string]float64, required ...string) (map[string]float64, error) {
	out := make(map[string]float64, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range params {
		if _, ok := defaults[k]; !ok {
			return nil, core.NewFamilyParamsError(family, fmt.Sprintf("unknown parameter %q", k))
		}
		out[k] = v
	}
	for _, k := range required {
		if _, ok := params[k]; !ok {
			return nil, core.NewFamilyParamsError(family, fmt.Sprintf("missing required parameter %q", k))
		}
	}
	for k, v := range out {
		if !(v > 0) {
			return nil, core.NewFamilyParamsError(family, fmt.Sprintf("parameter %q must be positive, got %v", k, v))
		}
	}
	return out, nil
}
