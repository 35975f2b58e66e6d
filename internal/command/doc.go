// Package command turns broker messages into alarm commands.
package command
