package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/provider"
)

func registerIsolators(reg *provider.Registry[Isolator], cfg IsolationConfig, log *logger.Logger) {
	reg.RegisterFactory(BackendCgroup, func(map[string]any) (Isolator, error) {
		return &cgroupIsolator{root: cfg.CgroupRoot, log: log}, nil
	})
	reg.RegisterFactory(BackendWatchdog, func(map[string]any) (Isolator, error) {
		return &watchdogIsolator{interval: cfg.WatchInterval}, nil
	})
	reg.RegisterFactory(BackendUnconfined, unconfinedFactory(cfg))
}

// applyNetNS puts the child in a fresh network namespace, which holds only a
// loopback device that is down. Unprivileged callers also get a user
// namespace mapping their own uid and gid, which is what lets them create it.
func applyNetNS(attr *syscall.SysProcAttr) {
	attr.Cloneflags |= unix.CLONE_NEWNET
	uid, gid := os.Geteuid(), os.Getegid()
	if uid == 0 {
		return
	}
	attr.Cloneflags |= unix.CLONE_NEWUSER
	attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: uid, HostID: uid, Size: 1}}
	attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: gid, HostID: gid, Size: 1}}
	attr.GidMappingsEnableSetgroups = false
}

// tryNetNS starts a trivial child in a new network namespace. Sysctls,
// LSM policy and container runtimes all decide whether that works, so
// trying is the only reliable check.
func tryNetNS() error {
	path, err := exec.LookPath("true")
	if err != nil {
		return errors.New("no binary to test network namespaces with")
	}
	cmd := exec.Command(path)
	applyNetNS(sysProcAttr(cmd))
	return cmd.Run()
}
