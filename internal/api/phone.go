package api

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const errInvalidPhone = "Invalid phone number"

// normalizePhone приводит номер к E.164. Номер без "+" трактуется как номер региона
// по умолчанию. Проверяется только правдоподобная длина, не принадлежность диапазону.
func normalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), strings.ToUpper(region))
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return "", invalid(errInvalidPhone)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
