package task

import "strings"

// ApplyTextOp applies one named text transformation. Both sides of the
// protocol fold an input through the same operation list, so the oracle's
// expected answer and the solver's submission agree by construction.
// Unknown operation names leave the text untouched.
func ApplyTextOp(input, op string) string {
	switch op {
	case "uppercase":
		return strings.ToUpper(input)
	case "lowercase":
		return strings.ToLower(input)
	case "reverse":
		runes := []rune(input)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	case "strip_spaces":
		return strings.ReplaceAll(input, " ", "")
	case "remove_vowels":
		return strings.Map(func(r rune) rune {
			switch r {
			case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
				return -1
			}
			return r
		}, input)
	default:
		return input
	}
}
