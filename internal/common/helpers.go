// Package common содержит общие утилиты, используемые во всём проекте:
// русская плюрализация и форматирование баланса.
package common

import (
	"fmt"
	"math"
)

// PluralizePoints возвращает правильную форму слова «балл» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "балл" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "балла" (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → "баллов" (0, 5-20, 25-30, 100, ...)
func PluralizePoints(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "балл"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "балла"
	}
	return "баллов"
}

// FormatBalance форматирует баланс в читабельную строку.
// Пример: FormatBalance(150) → "150 баллов"
func FormatBalance(balance int64) string {
	return fmt.Sprintf("%d %s", balance, PluralizePoints(balance))
}
