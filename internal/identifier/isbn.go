package identifier

// ISBN checksum validation and format conversion. All functions expect a
// compact form: separators stripped, check digit X uppercased.

// ValidISBN13 reports whether a 13-digit string has a valid EAN-13
// checksum (alternating 1/3 weights, sum mod 10 == 0).
func ValidISBN13(isbn string) bool {
	if len(isbn) != 13 {
		return false
	}
	total := 0
	for i, c := range isbn {
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if i%2 == 1 {
			digit *= 3
		}
		total += digit
	}
	return total%10 == 0
}

// ValidISBN10 reports whether a 10-character string has a valid ISBN-10
// checksum (weights 10..1, sum mod 11 == 0, X counts as 10 in the check
// position).
func ValidISBN10(isbn string) bool {
	if len(isbn) != 10 {
		return false
	}
	total := 0
	for i, c := range isbn {
		var digit int
		switch {
		case c >= '0' && c <= '9':
			digit = int(c - '0')
		case c == 'X' && i == 9:
			digit = 10
		default:
			return false
		}
		total += digit * (10 - i)
	}
	return total%11 == 0
}

// ToISBN13 converts a valid ISBN-10 to its ISBN-13 form by prepending 978
// and recomputing the check digit. Returns "" if the input is not a valid
// ISBN-10.
func ToISBN13(isbn10 string) string {
	if !ValidISBN10(isbn10) {
		return ""
	}
	base := "978" + isbn10[:9]
	total := 0
	for i, c := range base {
		digit := int(c - '0')
		if i%2 == 1 {
			digit *= 3
		}
		total += digit
	}
	check := (10 - total%10) % 10
	return base + string(rune('0'+check))
}

// ToISBN10 converts a valid 978-prefixed ISBN-13 to its ISBN-10 form.
// 979-prefixed ISBNs have no ISBN-10 equivalent and return "".
func ToISBN10(isbn13 string) string {
	if !ValidISBN13(isbn13) || !hasPrefix978(isbn13) {
		return ""
	}
	base := isbn13[3:12]
	total := 0
	for i, c := range base {
		total += int(c-'0') * (10 - i)
	}
	check := (11 - total%11) % 11
	if check == 10 {
		return base + "X"
	}
	return base + string(rune('0'+check))
}

func hasPrefix978(isbn string) bool {
	return len(isbn) == 13 && isbn[:3] == "978"
}
