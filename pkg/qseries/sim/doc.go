// Package sim emulates a Qseries spectrometer at the command protocol
// level. A Device implements qseries.Transport, so the real driver runs
// unchanged against it. Spectra are synthetic Gaussian peaks on a flat
// baseline whose height scales with exposure time and averaging.
package sim
