package netsvr

import (
	"net/http"

	"github.com/zintix-labs/gridlab/server/app"
)

// NetSvr 是 HTTP 服務的組裝面：可掛路由，也能交給 app.App 管理啟停。
//
// 只有最外層的組裝器（server.Assemble / cmd/svr）拿得到 NetSvr；
// handler 與子模組只會看到 NetRouter。
type NetSvr interface {
	NetRouter
	app.Component

	// Address 監聽位址，例如 ":5808"
	Address() string
	// Handler 根路由；httptest 或外部 http.Server 可直接掛載
	Handler() http.Handler
}

// NetRouter 純路由行為，不含啟停控制。
type NetRouter interface {
	Use(middleware func(http.Handler) http.Handler)

	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)

	// Group 以 path 為前綴建立子路由
	Group(path string, fn func(NetRouter))
}
