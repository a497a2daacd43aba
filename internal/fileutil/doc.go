// Package fileutil provides small filesystem helpers shared across appenv:
// directory creation and bounded tail reads of captured process output.
package fileutil
