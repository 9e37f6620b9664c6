// Package render turns document pages into image surfaces.
//
// Rendering is two-phase. CreateSurface sizes an empty surface from the
// page viewport and tags it; Paint draws into it in the background and
// returns a Painting to wait on. A surface can be handed to its consumer
// before its pixels are ready.
//
// Full-size surfaces carry a data-page attribute. Thumbnails are a fixed
// width, carry data-page and data-thumbnail, and their Select action scrolls
// the configured Navigator to the page they preview.
package render
