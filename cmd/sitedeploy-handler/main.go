// Command sitedeploy-handler is the Lambda function behind the site deploy
// custom resource. Package it as "bootstrap" together with the site's build
// output and the sitedeploy.yml manifest; on stack create and update it
// uploads the assets next to it, entry asset last, invalidates the
// distribution, and reports the result to the stack.
//
// Environment:
//
//	SITEDEPLOY_CONFIG          Config file (default: sitedeploy.yml next to the executable)
//	SITEDEPLOY_DIR             Deploy directory (default: the executable's directory)
//	SITEDEPLOY_CONTENT_HASH    Physical resource id override
//	SITEDEPLOY_INDEX_FILENAME  Entry asset override
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/gurre/sitedeploy-go/entrypoint/handler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	exeDir := "."
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	} else {
		logger.Warn("cannot locate executable, using working directory", "error", err)
	}

	h, err := handler.Build(context.Background(), handler.Env{
		Getenv:    os.Getenv,
		ExeDir:    exeDir,
		LogStream: lambdacontext.LogStreamName,
	}, logger)
	if err != nil {
		logger.Error("startup failed, every deploy will report FAILED", "error", err)
		h = handler.NewFailing(err, lambdacontext.LogStreamName, logger)
	}

	lambda.Start(h.Handle)
}
