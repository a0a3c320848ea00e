package pkg

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

// ToastHeader is the response header the rendering layer reads toast events
// from.
const ToastHeader = "HX-Trigger"

// SetToastHeader sets the HX-Trigger response header to a showToast event:
//
//	{"showToast":{"message":"Brand created successfully","type":"success"}}
func SetToastHeader(c *gin.Context, message, toastType string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{
			"message": message,
			"type":    toastType,
		},
	})
	c.Header(ToastHeader, string(trigger))
}
