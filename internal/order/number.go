package order

import (
	"crypto/rand"
	"fmt"
	"time"
)

const numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const numberSuffixLength = 9

// NewOrderNumber генерирует человекочитаемый номер заказа вида
// ORD-1717171717171-4F7K2M9QX. Временная метка дает монотонность,
// криптографический суффикс — пренебрежимую вероятность коллизии;
// уникальность дополнительно гарантирует ограничение в БД.
func NewOrderNumber() (string, error) {
	buf := make([]byte, numberSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), buf), nil
}
