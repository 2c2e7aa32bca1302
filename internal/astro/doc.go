// Package astro holds two-body orbital mechanics helpers: conversions
// between state vectors and classical elements, apsides, angular momentum
// and local-horizon angles.
//
// Frames are body-centred inertial with +Z along the body's spin axis.
// Angles are radians; any consistent length/time units work as long as mu
// matches them.
package astro
