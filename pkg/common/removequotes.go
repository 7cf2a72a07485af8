package common

// RemoveQuotesIfAny strips one pair of matching single or double quotes. Terminals quote dragged-in file paths
// as "'/home/john/card 1.jpg'".
func RemoveQuotesIfAny(str string) string {
	if len(str) < 2 {
		return str
	}
	first, last := str[0], str[len(str)-1]
	if (first == '\'' || first == '"') && first == last {
		return str[1 : len(str)-1]
	}
	return str
}
