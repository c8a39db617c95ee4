package irc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"twitch-ws-irc/telemetry"
)

type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JoinChannelsThrottled отправляет JOIN для каждого канала, не превышая
// maxJoins за окно JoinWindow. На границе окна дожидается конца окна и
// фактической отправки всех предыдущих строк, и только потом открывает
// следующее окно. Имена в channels имеют вид "#name".
func (c *Client) JoinChannelsThrottled(ctx context.Context, channels [][]byte) error {
	if len(channels) == 0 {
		return nil
	}
	for _, ch := range channels {
		if !ValidChannelName(string(ch)) {
			return fmt.Errorf("%w: %q", ErrInvalidChannelName, ch)
		}
	}

	windowStart := c.clock.Now()
	for i, ch := range channels {
		if i != 0 && i%c.maxJoins == 0 {
			if elapsed := c.clock.Now().Sub(windowStart); elapsed < c.window {
				wait := c.window - elapsed
				telemetry.Inc(telemetry.JoinThrottleWaits)
				c.logger.Debug("irc: лимит JOIN, ожидание окна", zap.Int("joined", i), zap.Int("total", len(channels)), zap.Duration("wait", wait))
				if err := c.clock.Sleep(ctx, wait); err != nil {
					return err
				}
			}
			if err := c.transport.WaitForPendingSends(ctx); err != nil {
				return fmt.Errorf("irc: wait for pending sends: %w", err)
			}
			windowStart = c.clock.Now()
		}

		if err := c.sendLine(ctx, true, "JOIN ", ch, "", nil); err != nil {
			return fmt.Errorf("irc: send JOIN %s: %w", ch, err)
		}
	}
	return nil
}
