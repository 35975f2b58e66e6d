// Package registry maps sensor radio addresses to their configured identities.
package registry
