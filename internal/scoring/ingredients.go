package scoring

import (
	"math"
	"strings"
	"unicode"
)

// units is the fixed vocabulary stripped from the front of an ingredient line.
// "fl oz" is handled as a two-token unit in ParseIngredientName.
var units = map[string]struct{}{
	"cup": {}, "cups": {},
	"lb": {}, "lbs": {},
	"oz":   {},
	"tbsp": {}, "tsp": {},
	"piece": {}, "pieces": {},
	"clove": {}, "cloves": {},
	"bunch": {}, "bunches": {},
	"pint": {}, "pints": {},
	"quart": {}, "quarts": {},
	"gallon": {}, "gallons": {},
	"ml": {}, "l": {},
	"liter": {}, "liters": {},
	"g": {}, "gram": {}, "grams": {},
	"kg": {}, "kilogram": {}, "kilograms": {},
}

const vulgarFractions = "¼½¾⅐⅑⅒⅓⅔⅕⅖⅗⅘⅙⅚⅛⅜⅝⅞"

// ParseIngredientName reduces a free-text ingredient line to a normalized
// ingredient name: lower-cased, leading quantities and units removed,
// trailing punctuation trimmed. Lines without a recognizable quantity or
// unit pass through lower-cased and trimmed. When a line is nothing but
// quantities and units, the last unit word is the name, so the spice
// "2 cloves" stays "cloves". It never fails.
//
//	"2 cups Basmati rice."  -> "basmati rice"
//	"1 1/2 fl oz olive oil" -> "olive oil"
//	"Salt"                  -> "salt"
func ParseIngredientName(line string) string {
	tokens := strings.Fields(strings.ToLower(line))

	strippedUnit := false
	lastUnit := ""
strip:
	for len(tokens) > 0 {
		tok := tokens[0]
		switch {
		case isQuantity(tok):
			tokens = tokens[1:]
		case isFluidOunce(tokens):
			lastUnit = "fl oz"
			tokens = tokens[2:]
			strippedUnit = true
		case isUnit(tok):
			lastUnit = tok
			tokens = tokens[1:]
			strippedUnit = true
		case isQuantityWithUnit(tok):
			lastUnit = tok[strings.IndexFunc(tok, unicode.IsLetter):]
			tokens = tokens[1:]
			strippedUnit = true
		default:
			break strip
		}
	}
	if len(tokens) == 0 && lastUnit != "" {
		tokens = []string{lastUnit}
	}

	// "1 cup of rice" -> "rice"
	if strippedUnit && len(tokens) > 1 && tokens[0] == "of" {
		tokens = tokens[1:]
	}

	name := strings.Join(tokens, " ")
	return strings.TrimRightFunc(name, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func isQuantity(tok string) bool {
	hasDigit := false
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r), strings.ContainsRune(vulgarFractions, r):
			hasDigit = true
		case r == '.' || r == '/' || r == '-' || r == ',' || r == '–':
		default:
			return false
		}
	}
	return hasDigit
}

// isQuantityWithUnit matches a quantity glued to a unit, as in "200g" or "1.5kg".
func isQuantityWithUnit(tok string) bool {
	i := strings.IndexFunc(tok, unicode.IsLetter)
	if i <= 0 {
		return false
	}
	return isQuantity(tok[:i]) && isUnit(tok[i:])
}

func isUnit(tok string) bool {
	_, ok := units[strings.TrimRight(tok, ".")]
	return ok
}

func isFluidOunce(tokens []string) bool {
	if len(tokens) < 2 {
		return false
	}
	return strings.TrimRight(tokens[0], ".") == "fl" && strings.TrimRight(tokens[1], ".,") == "oz"
}

// Pantry is the set of normalized ingredient names a user has a purchase
// record for. A nil Pantry is valid and empty.
type Pantry map[string]struct{}

// NewPantry normalizes names with ParseIngredientName and drops blanks.
func NewPantry(names []string) Pantry {
	p := make(Pantry, len(names))
	for _, n := range names {
		if norm := ParseIngredientName(n); norm != "" {
			p[norm] = struct{}{}
		}
	}
	return p
}

// Has reports whether the normalized name is in the pantry.
func (p Pantry) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Availability returns round(available/total*100) over the recipe's
// ingredient lines. Every non-blank line counts toward the total; a line that
// normalizes to nothing can never be available. A recipe with no ingredients
// scores 100.
func Availability(ingredients []string, pantry Pantry) int {
	total, available := 0, 0
	for _, line := range ingredients {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if name := ParseIngredientName(line); name != "" && pantry.Has(name) {
			available++
		}
	}
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(available) / float64(total) * 100))
}

// tokenSet splits ingredient lines into a set of lower-case word tokens used
// for overlap similarity. Quantities, units and single letters are dropped.
func tokenSet(ingredients []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range ingredients {
		name := ParseIngredientName(line)
		words := strings.FieldsFunc(name, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		for _, w := range words {
			if len(w) < 2 || isUnit(w) {
				continue
			}
			set[w] = struct{}{}
		}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b|, or 0 when either side is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
