package main

import (
	"github.com/mustafazeydani/NotUyarX/cmd/notuyarx/commands"
	"github.com/mustafazeydani/NotUyarX/lib/serviceutil"
	"github.com/mustafazeydani/NotUyarX/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(false)
	tel, err := telemetry.SetupFromEnv(ctx, "notuyarx")
	if err != nil {
		serviceutil.Fatal("failed to set up telemetry", err)
	}
	defer tel.Shutdown(ctx)
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
