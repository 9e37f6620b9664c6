package render

import "context"

// Painting is the pending result of painting one or more surfaces.
type Painting struct {
	done chan struct{}
	err  error
}

func newPainting() *Painting {
	return &Painting{done: make(chan struct{})}
}

func (p *Painting) finish(err error) {
	p.err = err
	close(p.done)
}

// Done is closed when painting ends.
func (p *Painting) Done() <-chan struct{} {
	return p.done
}

// Err returns the painting error once Done is closed, and nil before.
func (p *Painting) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until painting ends or ctx is done. Giving up on ctx does not
// stop the painting.
func (p *Painting) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
