package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rankflow/billing/internal/app/service/order"
	"github.com/rankflow/billing/pkg/response"
)

// @Summary      List payment orders
// @Description  Admin order table with filters and paging.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body order.ListRequest true "List request"
// @Success      200  {object}  handlers.RespOK
// @Security     BearerAuth
// @Router       /api/v1/admin/orders/list [post]
func ApiListOrders(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := orders.List(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, orders *order.Service) {
	r.POST("/orders/list", ApiListOrders(orders))
}
