package translator

import "context"

// Outcome: итог одной отправки.
// Applied=false: сессия закрыта до прихода ответа, результат отброшен.
type Outcome struct {
	Params  RequestParameters
	Result  ResultState
	Err     error
	Applied bool
}

type Task struct {
	params RequestParameters
	done   chan struct{}
	out    Outcome
}

func (t *Task) Params() RequestParameters { return t.params }

func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (t *Task) finish(out Outcome) {
	t.out = out
	close(t.done)
}
