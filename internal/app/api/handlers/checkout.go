package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rankflow/billing/internal/app/service/checkout"
	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/response"
)

// @Summary      Create checkout order
// @Description  Creates a pending payment order and returns the gateway redirect URL.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body checkout.CreateOrderRequest true "Checkout request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/checkout [post]
func ApiCreateOrder(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := svc.CreateOrder(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, checkout.ErrPackageNotFound) ||
				errors.Is(err, checkout.ErrInvalidProvider) ||
				errors.Is(err, gateway.ErrUnknownProvider) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterCheckoutRoutes(r gin.IRouter, svc *checkout.Service) {
	r.POST("/checkout", ApiCreateOrder(svc))
}
