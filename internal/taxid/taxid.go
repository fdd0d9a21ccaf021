// Package taxid validates Brazilian taxpayer ids (CPF and CNPJ).
package taxid

import (
	"errors"
	"strings"
)

var ErrInvalidTaxID = errors.New("invalid_tax_id")

type Kind string

const (
	KindCPF  Kind = "cpf"
	KindCNPJ Kind = "cnpj"
)

// Digits strips punctuation, keeping only 0-9.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the bare digits of a valid CPF or CNPJ and its kind.
func Normalize(raw string) (string, Kind, error) {
	d := Digits(raw)
	switch len(d) {
	case 11:
		if ValidCPF(d) {
			return d, KindCPF, nil
		}
	case 14:
		if ValidCNPJ(d) {
			return d, KindCNPJ, nil
		}
	}
	return "", "", ErrInvalidTaxID
}

func Valid(raw string) bool {
	_, _, err := Normalize(raw)
	return err == nil
}

func ValidCPF(raw string) bool {
	d := Digits(raw)
	if len(d) != 11 || repeated(d) {
		return false
	}
	return checkDigit(d[:9], cpfWeights(10)) == d[9] &&
		checkDigit(d[:10], cpfWeights(11)) == d[10]
}

var (
	cnpjFirst  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

func ValidCNPJ(raw string) bool {
	d := Digits(raw)
	if len(d) != 14 || repeated(d) {
		return false
	}
	return checkDigit(d[:12], cnpjFirst) == d[12] &&
		checkDigit(d[:13], cnpjSecond) == d[13]
}

// Format renders digits with the usual mask, or returns raw unchanged.
func Format(raw string) string {
	d := Digits(raw)
	switch len(d) {
	case 11:
		return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
	case 14:
		return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
	default:
		return raw
	}
}

func cpfWeights(start int) []int {
	w := make([]int, start-1)
	for i := range w {
		w[i] = start - i
	}
	return w
}

// checkDigit is the mod-11 digit shared by both documents.
func checkDigit(digits string, weights []int) byte {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * weights[i]
	}
	rest := sum % 11
	if rest < 2 {
		return '0'
	}
	return byte('0' + 11 - rest)
}

func repeated(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}
