// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("dde-wloutput/wloutput")

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}
