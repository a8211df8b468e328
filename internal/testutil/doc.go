// Package testutil holds Pipe doubles shared by package tests.
package testutil
