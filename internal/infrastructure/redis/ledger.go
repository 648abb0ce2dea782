package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"points-auction/internal/domain"
)

// PointsLedger adapts the platform's redis-backed points balances to the
// engine's ledger interface. Debit is conditional and atomic: the Lua script
// refuses to take the balance negative, which is how a settlement on
// unreserved funds can fail.
type PointsLedger struct {
	client *redis.Client
}

func NewPointsLedger(client *redis.Client) *PointsLedger {
	return &PointsLedger{client: client}
}

func balanceKey(userID string) string {
	return fmt.Sprintf("points:balance:%s", userID)
}

func (l *PointsLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	balance, err := l.client.Get(ctx, balanceKey(userID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func (l *PointsLedger) Debit(ctx context.Context, userID string, amount int64) error {
	luaScript := `
        local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
        local amount = tonumber(ARGV[1])

        if balance < amount then
            return -1
        end

        return redis.call('DECRBY', KEYS[1], amount)
    `

	result, err := l.client.Eval(ctx, luaScript, []string{balanceKey(userID)}, amount).Int64()
	if err != nil {
		return err
	}
	if result < 0 {
		return fmt.Errorf("debit %d from %s: %w", amount, userID, domain.ErrInsufficientFunds)
	}
	return nil
}

// Credit adds points to a balance. Used by the admin surface to grant
// points; the engine itself never credits.
func (l *PointsLedger) Credit(ctx context.Context, userID string, amount int64) error {
	return l.client.IncrBy(ctx, balanceKey(userID), amount).Err()
}
