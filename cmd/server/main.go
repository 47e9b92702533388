package main

import "opshq/internal/app"

// @title           OpsHQ API
// @version         1.0
// @description     Вход по одноразовому коду на email; все остальные ресурсы закрыты сессионными воротами.
// @BasePath        /
func main() {
	app.Run()
}
