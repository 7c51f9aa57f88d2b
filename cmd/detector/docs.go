package main

//go:generate swag init -g cmd/detector/main.go -o docs

// @title           Mispricing Detector API
// @version         0.1.0
// @description     Cross-venue sports mispricing detection: signals, watch set, pipeline controls.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
