package queue

import (
	"errors"
	"fmt"
)

// Виды ошибок ядра очереди. Обработчики переводят их в HTTP-коды и коды ответа.
var (
	// ErrValidation — некорректные входные данные (severity вне 1..5, пустой id и т.п.).
	ErrValidation = errors.New("некорректные данные")
	// ErrConflict — недопустимый переход статуса или дублирующая операция.
	ErrConflict = errors.New("конфликт состояния")
	// ErrNotFound — приём или врач с таким идентификатором не найден.
	ErrNotFound = errors.New("запись не найдена")
	// ErrNotYetDue — регистрация прихода раньше назначенного времени приёма.
	ErrNotYetDue = errors.New("время приёма ещё не наступило")
	// ErrDoctorUnavailable — врач не в статусе available (начать приём нельзя)
	// либо в статусе leave (walk-in не принимается). Частный случай конфликта.
	ErrDoctorUnavailable = fmt.Errorf("%w: врач недоступен", ErrConflict)
	// ErrPersistence — запись в хранилище не удалась; изменение очереди откатывается.
	ErrPersistence = errors.New("ошибка сохранения состояния")
)
