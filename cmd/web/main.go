// @title           Helping Hands Payments API
// @version         1.0
// @description     Платежи и пожертвования Helping Hands: заказы, подтверждение оплаты, вебхуки, возвраты.
// @contact.name    Helping Hands
// @contact.email   support@helpinghands.org
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:4000
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import "helpinghands_backend/internal/app"

func main() {
	app.Run()
}
