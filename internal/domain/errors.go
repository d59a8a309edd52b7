package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTrade          = errors.New("trade inválido")
	ErrZeroQuantity          = errors.New("quantidade não pode ser zero")
	ErrTradeNotFound         = errors.New("trade não encontrado")
	ErrInsufficientInventory = errors.New("inventário insuficiente")
)

// InsufficientInventoryError indica que uma venda pediu mais do que os lotes
// abertos do símbolo possuem. Nenhum efeito da venda é persistido.
type InsufficientInventoryError struct {
	Symbol    string
	Requested int64
	Available int64
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("inventário insuficiente para %s: solicitado %d, disponível %d",
		e.Symbol, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
