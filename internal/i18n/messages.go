package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys shown to customers.
const (
	MsgMenuUnavailable     = "menu.unavailable"
	MsgConnection          = "error.connection"
	MsgServiceBusy         = "error.service_busy"
	MsgInvalidRequest      = "error.invalid_request"
	MsgSessionExpired      = "error.session_expired"
	MsgRestaurantClosed    = "restaurant.closed"
	MsgCartEmpty           = "cart.empty"
	MsgOrderPlaced         = "order.placed"
	MsgReservationReceived = "reservation.received"
	MsgWaiterCalled        = "waiter.called"
	MsgLoginFailed         = "auth.login_failed"
)

var messages = map[string][2]string{
	// key: {en, ar}
	MsgMenuUnavailable:     {"The menu is not available right now. Please try again shortly.", "القائمة غير متاحة حالياً. يرجى المحاولة بعد قليل."},
	MsgConnection:          {"Could not reach the restaurant. Please check your connection.", "تعذر الاتصال بالمطعم. يرجى التحقق من اتصالك."},
	MsgServiceBusy:         {"The restaurant system is busy. Please try again in a moment.", "نظام المطعم مشغول. يرجى المحاولة بعد لحظات."},
	MsgInvalidRequest:      {"Some details are missing or invalid.", "بعض البيانات ناقصة أو غير صحيحة."},
	MsgSessionExpired:      {"Your session has expired. Please sign in again.", "انتهت جلستك. يرجى تسجيل الدخول مرة أخرى."},
	MsgRestaurantClosed:    {"The restaurant is closed and not taking orders.", "المطعم مغلق ولا يستقبل طلبات حالياً."},
	MsgCartEmpty:           {"Your cart is empty.", "سلة الطلبات فارغة."},
	MsgOrderPlaced:         {"Your order has been placed.", "تم إرسال طلبك."},
	MsgReservationReceived: {"Your reservation request has been received.", "تم استلام طلب الحجز."},
	MsgWaiterCalled:        {"A waiter is on the way to table %s.", "النادل في الطريق إلى الطاولة %s."},
	MsgLoginFailed:         {"Wrong username or password.", "اسم المستخدم أو كلمة المرور غير صحيحة."},
}

var printers = newPrinters()

func newPrinters() map[string]*message.Printer {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range messages {
		_ = builder.SetString(language.English, key, text[0])
		_ = builder.SetString(language.Arabic, key, text[1])
	}
	return map[string]*message.Printer{
		English: message.NewPrinter(language.English, message.Catalog(builder)),
		Arabic:  message.NewPrinter(language.Arabic, message.Catalog(builder)),
	}
}

// T returns the message for key in lang, formatted with args.
func T(lang, key string, args ...interface{}) string {
	return printers[Normalize(lang)].Sprintf(key, args...)
}
