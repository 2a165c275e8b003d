// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
package common

import "errors"

var (
	// ErrSelfReferral — попытка записать пользователя рефералом самого себя
	ErrSelfReferral = errors.New("нельзя указывать себя пригласившим")
	// ErrInvalidAmount — некорректная сумма начисления (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
)
