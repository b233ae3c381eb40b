// Package rgbqmini binds a Qseries spectrometer to the daemon runtime.
//
// Sensor implements daemon.Driver for the rgb-qmini descriptor. It
// exposes one channel, "intensities", indexed by the "wavelengths"
// mapping, and keeps exposure time and averaging in daemon state so that
// they survive a restart.
package rgbqmini
