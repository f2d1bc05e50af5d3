/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/enclave/channel"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/host"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/backends"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/gnarkvm"
)

const (
	// transport flag.
	transportFlagName  = "transport"
	transportEnvKey    = "ZKPASS_HOST_TRANSPORT"
	transportFlagUsage = "Transport of the host and util channels." +
		" Possible values [unix] [tcp] [vsock]. Defaults to unix." +
		" Alternatively, this can be set with the following environment variable: " + transportEnvKey

	socketPathFlagName  = "socket-path"
	socketPathEnvKey    = "ZKPASS_HOST_SOCKET_PATH"
	socketPathFlagUsage = "Unix socket the host listens on." +
		" Alternatively, this can be set with the following environment variable: " + socketPathEnvKey

	utilSocketPathFlagName  = "util-socket-path"
	utilSocketPathEnvKey    = "ZKPASS_HOST_UTIL_SOCKET_PATH"
	utilSocketPathFlagUsage = "Unix socket of the relay util server." +
		" Alternatively, this can be set with the following environment variable: " + utilSocketPathEnvKey

	tcpAddressFlagName  = "tcp-address"
	tcpAddressEnvKey    = "ZKPASS_HOST_TCP_ADDRESS"
	tcpAddressFlagUsage = "Host:Port the host listens on with the tcp transport." +
		" Alternatively, this can be set with the following environment variable: " + tcpAddressEnvKey

	utilTCPAddressFlagName  = "util-tcp-address"
	utilTCPAddressEnvKey    = "ZKPASS_HOST_UTIL_TCP_ADDRESS"
	utilTCPAddressFlagUsage = "Host:Port of the relay util server with the tcp transport." +
		" Alternatively, this can be set with the following environment variable: " + utilTCPAddressEnvKey

	// vsock flags.
	vsockCIDFlagName  = "vsock-cid"
	vsockCIDEnvKey    = "ZKPASS_HOST_VSOCK_CID"
	vsockCIDFlagUsage = "Context id of the parent instance running the relay." +
		" Alternatively, this can be set with the following environment variable: " + vsockCIDEnvKey

	vsockPortFlagName  = "vsock-port"
	vsockPortEnvKey    = "ZKPASS_HOST_VSOCK_PORT"
	vsockPortFlagUsage = "Port the host listens on with the vsock transport." +
		" Alternatively, this can be set with the following environment variable: " + vsockPortEnvKey

	vsockUtilPortFlagName  = "vsock-util-port"
	vsockUtilPortEnvKey    = "ZKPASS_HOST_VSOCK_UTIL_PORT"
	vsockUtilPortFlagUsage = "Port of the relay util server with the vsock transport." +
		" Alternatively, this can be set with the following environment variable: " + vsockUtilPortEnvKey

	// channel flags.
	maxConnectionAttemptsFlagName  = "max-connection-attempts"
	maxConnectionAttemptsEnvKey    = "ZKPASS_HOST_MAX_CONNECTION_ATTEMPTS"
	maxConnectionAttemptsFlagUsage = "Attempts to connect to the util server before giving up." +
		" Alternatively, this can be set with the following environment variable: " + maxConnectionAttemptsEnvKey

	maxReconnectionAttemptsFlagName  = "max-reconnection-attempts"
	maxReconnectionAttemptsEnvKey    = "MAX_RECONNECTION_ATTEMPTS"
	maxReconnectionAttemptsFlagUsage = "Attempts to restore a broken util channel." +
		" Alternatively, this can be set with the following environment variable: " + maxReconnectionAttemptsEnvKey

	bufferSizeFlagName  = "buffer-size"
	bufferSizeEnvKey    = "ZKPASS_HOST_BUFFER_SIZE"
	bufferSizeFlagUsage = "Read buffer size of the channel framing." +
		" Alternatively, this can be set with the following environment variable: " + bufferSizeEnvKey

	heartbeatIntervalFlagName  = "heartbeat-interval"
	heartbeatIntervalEnvKey    = "ZKPASS_HOST_HEARTBEAT_INTERVAL"
	heartbeatIntervalFlagUsage = "How often the util channel is pinged, as a duration such as 30s." +
		" Alternatively, this can be set with the following environment variable: " + heartbeatIntervalEnvKey

	heartbeatTimeoutFlagName  = "heartbeat-timeout"
	heartbeatTimeoutEnvKey    = "ZKPASS_HOST_HEARTBEAT_TIMEOUT"
	heartbeatTimeoutFlagUsage = "How long a ping may wait for its pong before the util channel is reconnected." +
		" Alternatively, this can be set with the following environment variable: " + heartbeatTimeoutEnvKey

	// proving flags.
	zkvmFlagName  = "zkvm"
	zkvmEnvKey    = "ZKPASS_HOST_ZKVM"
	zkvmFlagUsage = "Backend used for requests naming none." +
		" Alternatively, this can be set with the following environment variable: " + zkvmEnvKey

	workersFlagName  = "workers"
	workersEnvKey    = "ZKPASS_HOST_WORKERS"
	workersFlagUsage = "Number of proofs generated concurrently." +
		" Alternatively, this can be set with the following environment variable: " + workersEnvKey

	verifyingKeyDirFlagName  = "verifying-key-dir"
	verifyingKeyDirEnvKey    = "ZKPASS_HOST_VERIFYING_KEY_DIR"
	verifyingKeyDirFlagUsage = "Directory the verifying keys of every circuit set up are pinned in," +
		" for distribution to verifiers. Keys are kept in memory only when unset." +
		" Alternatively, this can be set with the following environment variable: " + verifyingKeyDirEnvKey

	// key flags.
	localSecretFlagName  = "local-secret"
	localSecretEnvKey    = "ZKPASS_HOST_LOCAL_SECRET" //nolint:gosec
	localSecretFlagUsage = "Secret protecting NATIVE private keys." +
		" Alternatively, this can be set with the following environment variable: " + localSecretEnvKey

	kmsToolFlagName  = "kms-tool"
	kmsToolEnvKey    = "ZKPASS_HOST_KMS_TOOL"
	kmsToolFlagUsage = "Path of the KMS helper decrypting KMS private keys." +
		" Alternatively, this can be set with the following environment variable: " + kmsToolEnvKey

	// keyset endpoint flags.
	jwksAddressFlagName  = "jwks-address"
	jwksAddressEnvKey    = "ZKPASS_HOST_JWKS_ADDRESS"
	jwksAddressFlagUsage = "Host:Port to serve the service keyset on (optional)." +
		" Alternatively, this can be set with the following environment variable: " + jwksAddressEnvKey

	apiTokenFlagName  = "api-token"
	apiTokenEnvKey    = "ZKPASS_HOST_API_TOKEN" //nolint:gosec
	apiTokenFlagUsage = "Check for bearer token in the authorization header of keyset requests (optional)." +
		" Alternatively, this can be set with the following environment variable: " + apiTokenEnvKey

	allowedOriginsFlagName  = "allowed-origins"
	allowedOriginsEnvKey    = "ZKPASS_HOST_ALLOWED_ORIGINS"
	allowedOriginsFlagUsage = "Origins allowed to fetch the keyset. This flag can be repeated." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " +
		allowedOriginsEnvKey

	// log flags.
	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "ZKPASS_HOST_LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	logFileFlagName  = "log-file"
	logFileEnvKey    = "ZKPASS_HOST_LOG_FILE"
	logFileFlagUsage = "File receiving JSON log lines, rotated at 100 MB (optional)." +
		" Alternatively, this can be set with the following environment variable: " + logFileEnvKey

	unixTransport  = "unix"
	tcpTransport   = "tcp"
	vsockTransport = "vsock"

	logFileMaxSizeMB  = 100
	logFileMaxBackups = 5
	logFileMaxAgeDays = 30

	shutdownTimeout = 5 * time.Second
)

var logger = log.New("zkpass/host-start")

var errUnknownTransport = errors.New("unknown transport")

type hostParameters struct {
	server            server
	transport         channel.Transport
	utilTransport     channel.Transport
	channelOpts       []channel.Option
	zkvm              string
	workers           int
	verifyingKeyDir   string
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	localSecret       string
	kmsTool           string
	jwksAddress       string
	token             string
	allowedOrigins    []string
	logRelay          *host.LogRelay
}

type server interface {
	ListenAndServe(ctx context.Context, address string, router http.Handler) error
}

// HTTPServer serves the keyset endpoint with the standard Go HTTP server.
type HTTPServer struct{}

// ListenAndServe serves router on address until ctx is done.
func (s *HTTPServer) ListenAndServe(ctx context.Context, address string, router http.Handler) error {
	srv := &http.Server{Addr: address, Handler: router, ReadHeaderTimeout: shutdownTimeout}

	errs := make(chan error, 1)

	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the proof host",
		Long:  `Start the zkPass proof host serving proof requests from the relay`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := getUserSetVar(cmd, logFileFlagName, logFileEnvKey)
			if err != nil {
				return err
			}

			relay := host.NewLogRelay(log.NewZapProvider(log.ZapConfig{
				Output:     cmd.OutOrStdout(),
				File:       logFile,
				MaxSizeMB:  logFileMaxSizeMB,
				MaxBackups: logFileMaxBackups,
				MaxAgeDays: logFileMaxAgeDays,
			}), 0)

			log.Initialize(relay)

			logLevel, err := getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey)
			if err != nil {
				return err
			}

			if err = setLogLevel(logLevel); err != nil {
				return err
			}

			parameters, err := getHostParameters(cmd)
			if err != nil {
				return err
			}

			parameters.server = server
			parameters.logRelay = relay

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return startHost(ctx, parameters)
		},
	}
}

func createFlags(startCmd *cobra.Command) {
	// transports
	startCmd.Flags().StringP(transportFlagName, "", unixTransport, transportFlagUsage)
	startCmd.Flags().StringP(socketPathFlagName, "", channel.DefaultSocketFile, socketPathFlagUsage)
	startCmd.Flags().StringP(utilSocketPathFlagName, "", channel.DefaultUtilSocketFile, utilSocketPathFlagUsage)
	startCmd.Flags().StringP(tcpAddressFlagName, "", "", tcpAddressFlagUsage)
	startCmd.Flags().StringP(utilTCPAddressFlagName, "", "", utilTCPAddressFlagUsage)
	startCmd.Flags().StringP(vsockCIDFlagName, "", strconv.FormatUint(uint64(channel.VsockCIDParent), 10),
		vsockCIDFlagUsage)
	startCmd.Flags().StringP(vsockPortFlagName, "", strconv.FormatUint(uint64(channel.DefaultHostPort), 10),
		vsockPortFlagUsage)
	startCmd.Flags().StringP(vsockUtilPortFlagName, "", strconv.FormatUint(uint64(channel.DefaultUtilPort), 10),
		vsockUtilPortFlagUsage)

	// channel
	startCmd.Flags().StringP(maxConnectionAttemptsFlagName, "",
		strconv.Itoa(channel.DefaultMaxConnectionAttempts), maxConnectionAttemptsFlagUsage)
	startCmd.Flags().StringP(maxReconnectionAttemptsFlagName, "",
		strconv.Itoa(channel.DefaultReconnectionAttempts), maxReconnectionAttemptsFlagUsage)
	startCmd.Flags().StringP(bufferSizeFlagName, "", strconv.Itoa(channel.DefaultBufferSize), bufferSizeFlagUsage)
	startCmd.Flags().StringP(heartbeatIntervalFlagName, "", host.DefaultHeartbeatInterval.String(),
		heartbeatIntervalFlagUsage)
	startCmd.Flags().StringP(heartbeatTimeoutFlagName, "", host.DefaultHeartbeatTimeout.String(),
		heartbeatTimeoutFlagUsage)

	// proving
	startCmd.Flags().StringP(zkvmFlagName, "", backends.Default, zkvmFlagUsage)
	startCmd.Flags().StringP(workersFlagName, "", "1", workersFlagUsage)
	startCmd.Flags().StringP(verifyingKeyDirFlagName, "", "", verifyingKeyDirFlagUsage)

	// keys
	startCmd.Flags().StringP(localSecretFlagName, "", "", localSecretFlagUsage)
	startCmd.Flags().StringP(kmsToolFlagName, "", host.DefaultKMSTool, kmsToolFlagUsage)

	// keyset endpoint
	startCmd.Flags().StringP(jwksAddressFlagName, "", "", jwksAddressFlagUsage)
	startCmd.Flags().StringP(apiTokenFlagName, "", "", apiTokenFlagUsage)
	startCmd.Flags().StringSliceP(allowedOriginsFlagName, "", []string{}, allowedOriginsFlagUsage)

	// log
	startCmd.Flags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)
	startCmd.Flags().StringP(logFileFlagName, "", "", logFileFlagUsage)
}

// getUserSetVar returns the flag value when set on the command line, else the environment variable,
// else the flag default.
func getUserSetVar(cmd *cobra.Command, flagName, envKey string) (string, error) {
	if !cmd.Flags().Changed(flagName) {
		if value, isSet := os.LookupEnv(envKey); isSet {
			return value, nil
		}
	}

	value, err := cmd.Flags().GetString(flagName)
	if err != nil {
		return "", fmt.Errorf(flagName+" flag not found: %w", err)
	}

	return value, nil
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string) ([]string, error) {
	if !cmd.Flags().Changed(flagName) {
		if value, isSet := os.LookupEnv(envKey); isSet {
			return strings.Split(value, ","), nil
		}
	}

	value, err := cmd.Flags().GetStringSlice(flagName)
	if err != nil {
		return nil, fmt.Errorf(flagName+" flag not found: %w", err)
	}

	return value, nil
}

func getUint(cmd *cobra.Command, flagName, envKey string, bitSize int) (uint64, error) {
	value, err := getUserSetVar(cmd, flagName, envKey)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseUint(value, 10, bitSize)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "invalid %s %q", flagName, value)
	}

	return n, nil
}

func getDuration(cmd *cobra.Command, flagName, envKey string) (time.Duration, error) {
	value, err := getUserSetVar(cmd, flagName, envKey)
	if err != nil {
		return 0, err
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "invalid %s %q", flagName, value)
	}

	return d, nil
}

func getHostParameters(cmd *cobra.Command) (*hostParameters, error) { //nolint:funlen,gocyclo
	transport, utilTransport, err := getTransports(cmd)
	if err != nil {
		return nil, err
	}

	maxConnectionAttempts, err := getUint(cmd, maxConnectionAttemptsFlagName, maxConnectionAttemptsEnvKey, 64)
	if err != nil {
		return nil, err
	}

	reconnectionAttempts, err := getUint(cmd, maxReconnectionAttemptsFlagName, maxReconnectionAttemptsEnvKey, 64)
	if err != nil {
		return nil, err
	}

	bufferSize, err := getUint(cmd, bufferSizeFlagName, bufferSizeEnvKey, 31)
	if err != nil {
		return nil, err
	}

	heartbeatInterval, err := getDuration(cmd, heartbeatIntervalFlagName, heartbeatIntervalEnvKey)
	if err != nil {
		return nil, err
	}

	heartbeatTimeout, err := getDuration(cmd, heartbeatTimeoutFlagName, heartbeatTimeoutEnvKey)
	if err != nil {
		return nil, err
	}

	workers, err := getUint(cmd, workersFlagName, workersEnvKey, 16)
	if err != nil {
		return nil, err
	}

	zkvm, err := getUserSetVar(cmd, zkvmFlagName, zkvmEnvKey)
	if err != nil {
		return nil, err
	}

	verifyingKeyDir, err := getUserSetVar(cmd, verifyingKeyDirFlagName, verifyingKeyDirEnvKey)
	if err != nil {
		return nil, err
	}

	localSecret, err := getUserSetVar(cmd, localSecretFlagName, localSecretEnvKey)
	if err != nil {
		return nil, err
	}

	kmsTool, err := getUserSetVar(cmd, kmsToolFlagName, kmsToolEnvKey)
	if err != nil {
		return nil, err
	}

	jwksAddress, err := getUserSetVar(cmd, jwksAddressFlagName, jwksAddressEnvKey)
	if err != nil {
		return nil, err
	}

	token, err := getUserSetVar(cmd, apiTokenFlagName, apiTokenEnvKey)
	if err != nil {
		return nil, err
	}

	allowedOrigins, err := getUserSetVars(cmd, allowedOriginsFlagName, allowedOriginsEnvKey)
	if err != nil {
		return nil, err
	}

	return &hostParameters{
		transport:     transport,
		utilTransport: utilTransport,
		channelOpts: []channel.Option{
			channel.WithMaxConnectionAttempts(maxConnectionAttempts),
			channel.WithReconnectionAttempts(reconnectionAttempts),
			channel.WithBufferSize(int(bufferSize)),
		},
		zkvm:              zkvm,
		workers:           int(workers),
		verifyingKeyDir:   verifyingKeyDir,
		heartbeatInterval: heartbeatInterval,
		heartbeatTimeout:  heartbeatTimeout,
		localSecret:       localSecret,
		kmsTool:           kmsTool,
		jwksAddress:       jwksAddress,
		token:             token,
		allowedOrigins:    allowedOrigins,
	}, nil
}

func getTransports(cmd *cobra.Command) (channel.Transport, channel.Transport, error) {
	name, err := getUserSetVar(cmd, transportFlagName, transportEnvKey)
	if err != nil {
		return nil, nil, err
	}

	switch name {
	case unixTransport:
		path, err := getUserSetVar(cmd, socketPathFlagName, socketPathEnvKey)
		if err != nil {
			return nil, nil, err
		}

		utilPath, err := getUserSetVar(cmd, utilSocketPathFlagName, utilSocketPathEnvKey)
		if err != nil {
			return nil, nil, err
		}

		return &channel.UnixTransport{Path: path}, &channel.UnixTransport{Path: utilPath}, nil
	case tcpTransport:
		address, err := getUserSetVar(cmd, tcpAddressFlagName, tcpAddressEnvKey)
		if err != nil {
			return nil, nil, err
		}

		utilAddress, err := getUserSetVar(cmd, utilTCPAddressFlagName, utilTCPAddressEnvKey)
		if err != nil {
			return nil, nil, err
		}

		if address == "" || utilAddress == "" {
			return nil, nil, fmt.Errorf("the tcp transport needs both %s and %s", tcpAddressFlagName,
				utilTCPAddressFlagName)
		}

		return &channel.TCPTransport{Address: address}, &channel.TCPTransport{Address: utilAddress}, nil
	case vsockTransport:
		cid, err := getUint(cmd, vsockCIDFlagName, vsockCIDEnvKey, 32)
		if err != nil {
			return nil, nil, err
		}

		port, err := getUint(cmd, vsockPortFlagName, vsockPortEnvKey, 32)
		if err != nil {
			return nil, nil, err
		}

		utilPort, err := getUint(cmd, vsockUtilPortFlagName, vsockUtilPortEnvKey, 32)
		if err != nil {
			return nil, nil, err
		}

		return &channel.VsockTransport{CID: channel.VsockCIDAny, Port: uint32(port)},
			&channel.VsockTransport{CID: uint32(cid), Port: uint32(utilPort)}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownTransport, name)
	}
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func startHost(ctx context.Context, parameters *hostParameters) error {
	opts := []host.Option{
		host.WithUtilTransport(parameters.utilTransport),
		host.WithChannelOptions(parameters.channelOpts...),
		host.WithDefaultBackend(parameters.zkvm),
		host.WithWorkers(parameters.workers),
		host.WithHeartbeat(parameters.heartbeatInterval, parameters.heartbeatTimeout),
		host.WithLocalSecret(parameters.localSecret),
		host.WithKMSTool(parameters.kmsTool),
	}

	if parameters.logRelay != nil {
		opts = append(opts, host.WithLogRelay(parameters.logRelay))
	}

	if parameters.verifyingKeyDir != "" {
		logger.Infof("pinning verifying keys in %s", parameters.verifyingKeyDir)

		opts = append(opts, host.WithBackends(backends.NewRegistry(
			gnarkvm.WithKeyStore(gnarkvm.NewDirKeyStore(parameters.verifyingKeyDir)))))
	}

	h := host.New(parameters.transport, opts...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pkgerrors.Wrap(h.Run(gctx), "proof host stopped")
	})

	if parameters.jwksAddress != "" {
		router := controller.NewRouter(controller.GetRESTHandlers(h.Keys()),
			controller.WithAuthToken(parameters.token), controller.WithAllowedOrigins(parameters.allowedOrigins...))

		g.Go(func() error {
			logger.Infof("serving service keyset on [%s]", parameters.jwksAddress)

			err := parameters.server.ListenAndServe(gctx, parameters.jwksAddress, router)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return pkgerrors.Wrapf(err, "keyset endpoint on [%s]", parameters.jwksAddress)
			}

			return nil
		})
	}

	logger.Infof("starting proof host on %s transport", parameters.transport.Name())

	return g.Wait()
}
