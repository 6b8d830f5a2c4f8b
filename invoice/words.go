package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	onesMasculine = [...]string{"", "один", "два", "три", "четыре", "пять", "шесть", "семь", "восемь", "девять"}
	onesFeminine  = [...]string{"", "одна", "две", "три", "четыре", "пять", "шесть", "семь", "восемь", "девять"}
	teens         = [...]string{"десять", "одиннадцать", "двенадцать", "тринадцать", "четырнадцать",
		"пятнадцать", "шестнадцать", "семнадцать", "восемнадцать", "девятнадцать"}
	tens     = [...]string{"", "", "двадцать", "тридцать", "сорок", "пятьдесят", "шестьдесят", "семьдесят", "восемьдесят", "девяносто"}
	hundreds = [...]string{"", "сто", "двести", "триста", "четыреста", "пятьсот", "шестьсот", "семьсот", "восемьсот", "девятьсот"}
)

type scale struct {
	forms    [3]string
	feminine bool
}

// Scales from 10^3 upward.
var scales = []scale{
	{forms: [3]string{"тысяча", "тысячи", "тысяч"}, feminine: true},
	{forms: [3]string{"миллион", "миллиона", "миллионов"}},
	{forms: [3]string{"миллиард", "миллиарда", "миллиардов"}},
	{forms: [3]string{"триллион", "триллиона", "триллионов"}},
	{forms: [3]string{"квадриллион", "квадриллиона", "квадриллионов"}},
	{forms: [3]string{"квинтиллион", "квинтиллиона", "квинтиллионов"}},
}

// Plural picks the Russian noun form for n: one (1, 21), few (2-4, 22-24)
// or many (0, 5-20, 25...).
func Plural(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	switch n100 := n % 100; {
	case n100 >= 11 && n100 <= 14:
		return many
	case n%10 == 1:
		return one
	case n%10 >= 2 && n%10 <= 4:
		return few
	}
	return many
}

// SpellNumber writes n as a masculine Russian cardinal, e.g.
// 1234 → "одна тысяча двести тридцать четыре".
func SpellNumber(n int64) string {
	if n == 0 {
		return "ноль"
	}
	// Work on the unsigned magnitude so math.MinInt64 survives negation.
	u := uint64(n)
	neg := n < 0
	if neg {
		u = -u
	}

	var groups []int
	for u > 0 {
		groups = append(groups, int(u%1000))
		u /= 1000
	}

	var words []string
	if neg {
		words = append(words, "минус")
	}
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			continue
		}
		if i == 0 {
			words = append(words, triad(g, false)...)
			continue
		}
		sc := scales[i-1]
		words = append(words, triad(g, sc.feminine)...)
		words = append(words, Plural(int64(g), sc.forms[0], sc.forms[1], sc.forms[2]))
	}
	return strings.Join(words, " ")
}

func triad(n int, feminine bool) []string {
	var words []string
	if h := n / 100; h > 0 {
		words = append(words, hundreds[h])
	}
	rest := n % 100
	switch {
	case rest >= 10 && rest < 20:
		words = append(words, teens[rest-10])
	default:
		if t := rest / 10; t > 0 {
			words = append(words, tens[t])
		}
		if o := rest % 10; o > 0 {
			if feminine {
				words = append(words, onesFeminine[o])
			} else {
				words = append(words, onesMasculine[o])
			}
		}
	}
	return words
}

// AmountInWords renders an amount in kopecks as an invoice line, e.g.
// 123456 → "Одна тысяча двести тридцать четыре рубля 56 копеек".
func AmountInWords(minor int64) string {
	rubles, kopecks := minor/100, minor%100
	if kopecks < 0 {
		kopecks = -kopecks
	}
	text := capitalize(SpellNumber(rubles))
	if minor < 0 && rubles == 0 {
		text = "Минус " + text
	}
	return fmt.Sprintf("%s %s %02d %s",
		text,
		Plural(rubles, "рубль", "рубля", "рублей"),
		kopecks,
		Plural(kopecks, "копейка", "копейки", "копеек"))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatDate renders "dd.mm.yyyy" as "2 января 2024 г.". Anything else is
// returned unchanged.
func FormatDate(s string) string {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return s
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return s
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return s
	}
	year := parts[2]
	if _, err := strconv.Atoi(year); err != nil {
		return s
	}
	return fmt.Sprintf("%d %s %s г.", day, monthsGenitive[month-1], year)
}
