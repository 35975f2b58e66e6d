// Package instance keeps two centrals from driving the same pins.
package instance
