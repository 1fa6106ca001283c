package models

import (
	"errors"
	"fmt"
)

// ErrNotTrained инференс вызван до успешного обучения
var ErrNotTrained = errors.New("model is not trained")

// ErrResourceExhausted обучение превысило бюджет памяти
var ErrResourceExhausted = errors.New("resource exhausted")

// MalformedInputError отсутствует обязательный ключ соединения
type MalformedInputError struct {
	Table string
	Row   int
	Field string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: table %s row %d: required field %q is empty", e.Table, e.Row, e.Field)
}

// FeatureContractViolation на этапе оценки отсутствует ожидаемая колонка
type FeatureContractViolation struct {
	Column string
}

func (e *FeatureContractViolation) Error() string {
	return fmt.Sprintf("feature contract violation: column %q is absent", e.Column)
}

// ResourceExhaustionError оценка памяти под ансамбль превышает лимит
type ResourceExhaustionError struct {
	Required int64
	Limit    int64
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("fit needs ~%d bytes, limit is %d bytes: %v", e.Required, e.Limit, ErrResourceExhausted)
}

func (e *ResourceExhaustionError) Unwrap() error { return ErrResourceExhausted }

// StageError ошибка пакетного прогона с указанием этапа и таблицы
type StageError struct {
	Stage string
	Table string
	Err   error
}

func (e *StageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("stage %s (table %s): %v", e.Stage, e.Table, e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
