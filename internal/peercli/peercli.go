// Package peercli is the peer's interactive command loop: one cobra command
// per reserved verb of spec §6, re-executed against a fresh argument line
// read from stdin. This adapts the teacher's one-subcommand-per-operation
// cobra tree (internal/client/cmd) from a one-shot-CLI-talking-to-a-daemon
// shape into a REPL over a single persistent tracker session, which is what
// the wire protocol in spec §4.G actually models.
package peercli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vikramjeet-dev/swarmshare/internal/chunking"
	"github.com/vikramjeet-dev/swarmshare/internal/downloader"
	"github.com/vikramjeet-dev/swarmshare/internal/ownedfiles"
	"github.com/vikramjeet-dev/swarmshare/internal/sessioncache"
	"github.com/vikramjeet-dev/swarmshare/internal/trackerclient"
)

// REPL drives the peer's interactive session.
type REPL struct {
	tc       *trackerclient.Client
	registry *ownedfiles.Registry
	dl       *downloader.Downloader
	cache    *sessioncache.Cache // nil when resume support is disabled
	downDir  string
	log      *logrus.Entry
	root     *cobra.Command
	quit     bool
}

// New wires up the command tree. downDir is where download_file writes
// files; cache may be nil.
func New(tc *trackerclient.Client, registry *ownedfiles.Registry, dl *downloader.Downloader, cache *sessioncache.Cache, downDir string, log *logrus.Entry) *REPL {
	r := &REPL{tc: tc, registry: registry, dl: dl, cache: cache, downDir: downDir, log: log}
	r.root = r.buildRootCmd()
	return r
}

// Run reads commands line by line from in until EOF or quit. Neither Run
// nor cmd/peer watches the tracker connection for a pushed "shutdown"
// line; such a line is read as the response to the next command sent.
func (r *REPL) Run(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for !r.quit && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.root.SetArgs(strings.Fields(line))
		r.root.SetOut(out)
		r.root.SetErr(out)
		if err := r.root.Execute(); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}

func (r *REPL) buildRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "peer", SilenceUsage: true, SilenceErrors: true}

	root.AddCommand(
		r.createUserCmd(), r.loginCmd(), r.createGroupCmd(), r.joinGroupCmd(),
		r.leaveGroupCmd(), r.listGroupsCmd(), r.listRequestsCmd(), r.acceptRequestCmd(),
		r.listFilesCmd(), r.uploadFileCmd(), r.downloadFileCmd(), r.quitCmd(), r.shutdownCmd(),
	)
	return root
}

func (r *REPL) createUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "create_user <user_id> <password>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, r.tc.CreateUser(args[0], args[1]))
		},
	}
}

func (r *REPL) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "login <user_id> <password> <ip> <port>",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, r.tc.Login(args[0], args[1], args[2], args[3]))
		},
	}
}

func (r *REPL) createGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "create_group <group_id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, r.tc.CreateGroup(args[0]))
		},
	}
}

func (r *REPL) joinGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "join_group <group_id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, r.tc.JoinGroup(args[0]))
		},
	}
}

func (r *REPL) leaveGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "leave_group <group_id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, r.tc.LeaveGroup(args[0]))
		},
	}
}

func (r *REPL) listGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "list_groups",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := r.tc.ListGroups()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(groups, " "))
			return nil
		},
	}
}

func (r *REPL) listRequestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "list_requests <group_id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := r.tc.ListRequests(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(reqs, " "))
			return nil
		},
	}
}

func (r *REPL) acceptRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "accept_request <group_id> <user_id>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, r.tc.AcceptRequest(args[0], args[1]))
		},
	}
}

func (r *REPL) listFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "list_files <group_id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := r.tc.ListFiles(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(files, " "))
			return nil
		},
	}
}

// uploadFileCmd takes a 4th, peer-local-only argument (the on-disk path)
// that never crosses the wire — only the manifest derived from it does.
func (r *REPL) uploadFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "upload_file <group_id> <file_name> <path>",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, fileName, path := args[0], args[1], args[2]
			if err := r.tc.UploadFile(gid, fileName, path); err != nil {
				return err
			}
			sha1, _, chunks, err := chunking.BuildManifest(path)
			if err != nil {
				return err
			}
			r.registry.Put(ownedfiles.Info{FileName: fileName, OnDiskPath: path, FileSHA1: sha1, Chunks: chunks})
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func (r *REPL) downloadFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "download_file <group_id> <file_name>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, fileName := args[0], args[1]
			plan, err := r.tc.DownloadFile(gid, fileName)
			if err != nil {
				return err
			}
			path, err := r.dl.Download(cmd.Context(), plan, fileName, r.downDir)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%v (partial file at %s)\n", err, path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s\n", path)
			return nil
		},
	}
}

func (r *REPL) quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "quit",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = r.tc.Quit()
			r.quit = true
			fmt.Fprintln(cmd.OutOrStdout(), "bye")
			return nil
		},
	}
}

// shutdownCmd matches the tracker's rejection of this verb over the wire
// (only the tracker's own console may trigger it); offering it here simply
// surfaces that same "Error: ..." line to the user.
func (r *REPL) shutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "shutdown",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := r.tc.Command("shutdown")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

// Close releases the session cache, if one was configured.
func (r *REPL) Close() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Close()
}

func printResult(cmd *cobra.Command, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}
