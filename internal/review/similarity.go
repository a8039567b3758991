package review

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

// EditSimilarity — нормализованная мера того, насколько ревьюер изменил
// черновик перед апрувом: 100 — текст идентичен, около 0 — общих
// подпоследовательностей практически нет. Под капотом difflib SequenceMatcher
// (гестальт-вариант LCS), ratio масштабируется в [0,100] с округлением.
func EditSimilarity(draft, edited string) int {
	if draft == "" && edited == "" {
		return 100
	}

	m := difflib.NewMatcher(splitChars(draft), splitChars(edited))
	return int(math.Round(m.Ratio() * 100))
}

// splitChars режет строку на руны: сравниваем посимвольно, не построчно.
func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
