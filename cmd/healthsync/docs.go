package main

//go:generate swag init -g cmd/healthsync/main.go -o docs

// @title           healthsync API
// @version         0.1.0
// @description     Daily health aggregation and background window sync.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
