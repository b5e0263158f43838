/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/libris-lms/apiserver/cmd"

func main() {
	cmd.Execute()
}
