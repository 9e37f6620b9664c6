package render

import "context"

// Fragment holds the surfaces of one render call, in page order.
type Fragment struct {
	surfaces []*Surface
	painting *Painting
}

// Surfaces returns the surfaces in page order.
func (f *Fragment) Surfaces() []*Surface {
	return append([]*Surface(nil), f.surfaces...)
}

// Len returns the number of surfaces.
func (f *Fragment) Len() int {
	return len(f.surfaces)
}

// Surface returns the surface showing page, or nil.
func (f *Fragment) Surface(page int) *Surface {
	for _, s := range f.surfaces {
		if s.Number() == page {
			return s
		}
	}
	return nil
}

// Done is closed once every surface is painted or painting failed.
func (f *Fragment) Done() <-chan struct{} {
	return f.painting.Done()
}

// Wait blocks until all surfaces are painted. It returns the first
// painting error.
func (f *Fragment) Wait(ctx context.Context) error {
	return f.painting.Wait(ctx)
}
