package shorturl

import "fmt"

// Base62 alphabet: 0-9, a-z, A-Z.
const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// EncodeBase62 encodes a number as a base62 string.
func EncodeBase62(n uint64) string {
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 11) // 64 bits fit in 11 base62 digits
	for n > 0 {
		buf = append(buf, base62Chars[n%62])
		n /= 62
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// DecodeBase62 decodes a base62 string back to a number.
func DecodeBase62(encoded string) (uint64, error) {
	if encoded == "" {
		return 0, fmt.Errorf("empty base62 string")
	}
	var result uint64
	for _, c := range encoded {
		var digit uint64
		switch {
		case c >= '0' && c <= '9':
			digit = uint64(c - '0')
		case c >= 'a' && c <= 'z':
			digit = uint64(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			digit = uint64(c-'A') + 36
		default:
			return 0, fmt.Errorf("invalid base62 character %q", c)
		}
		result = result*62 + digit
	}
	return result, nil
}
