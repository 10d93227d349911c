// Command uedump inspects the reflection runtime of a live Unreal
// Engine process: locate the registries, parse them, browse and search
// the object graph.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"uedump/facade"
	"uedump/httpserver"
	"uedump/process"
	"uedump/query"

	"github.com/spf13/cobra"
)

var listenAddr string

func newCore() *facade.Core {
	return facade.NewCore(newPlatformProcess, listPlatformProcesses)
}

var rootCmd = &cobra.Command{
	Use:   "uedump",
	Short: "Live UE reflection inspector",
	Long:  "uedump attaches to a running Unreal Engine process, locates the NamePool and GUObjectArray registries, and answers queries over the reflected object graph.",
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List candidate target processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		procs, err := core.FetchSystemProcesses()
		if err != nil {
			return err
		}
		for _, p := range procs {
			fmt.Printf("%8d  %s\n", p.PID, p.Name)
		}
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <pid>",
	Short: "Attach, discover the registries and parse the object graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q", args[0])
		}

		core := newCore()
		msg, err := core.AttachToProcess(process.ProcessID(pid), args[0])
		if err != nil {
			return err
		}
		fmt.Println(msg)
		defer core.Detach()

		if version, err := core.GetUEVersion(); err == nil {
			fmt.Println("[ UE Version ]", version)
		}

		text, err := core.ShowBaseAddress()
		if err != nil {
			return err
		}
		fmt.Println(text)

		ctx := context.Background()

		names, err := core.ParseFNamePool(ctx)
		if err != nil {
			return err
		}
		fmt.Println("[ FNamePool Valid Names ]", names)

		objects, err := core.ParseGUObjectArray(ctx)
		if err != nil {
			return err
		}
		fmt.Println("[ GUObjectArray Total Objects ]", objects)

		packages, err := core.GetPackages()
		if err != nil {
			return err
		}
		for _, pkg := range packages {
			fmt.Printf("%6d  %s\n", pkg.ObjectCount, pkg.Name)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <pid> <query>",
	Short: "Attach, parse and run a global object search",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q", args[0])
		}

		core := newCore()
		if _, err := core.AttachToProcess(process.ProcessID(pid), args[0]); err != nil {
			return err
		}
		defer core.Detach()

		ctx := context.Background()
		if _, err := core.GetFNamePoolAddress(); err != nil {
			return err
		}
		if _, err := core.GetGUObjectArrayAddress(); err != nil {
			return err
		}
		if _, err := core.ParseGUObjectArray(ctx); err != nil {
			return err
		}

		results, err := core.GlobalSearch(args[1], query.SearchObjects)
		if err != nil {
			return err
		}
		for _, hit := range results {
			fmt.Printf("%-40s %-24s %-20s %s\n", hit.Package, hit.ObjectName, hit.TypeName, hit.Address.Hex())
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command API over HTTP for the UI shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		core := newCore()
		server := httpserver.New(listenAddr, core)
		return server.Start()
	},
}

func main() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8732", "listen address for the command API")
	rootCmd.AddCommand(psCmd, attachCmd, searchCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
