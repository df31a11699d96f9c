package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"buildwatch/internal/adapter/api"
	"buildwatch/internal/domain"
)

func newResourceCommands(a *app) []*cobra.Command {
	return []*cobra.Command{
		newCollectionCommand(a, domain.CollectionProjects, "project", (*api.Client).Projects),
		newCollectionCommand(a, domain.CollectionCredentials, "credential", (*api.Client).Credentials),
		newCollectionCommand(a, domain.CollectionProxies, "proxy", (*api.Client).Proxies),
		newCollectionCommand(a, domain.CollectionRegistries, "registry", (*api.Client).Registries),
	}
}

// validator is implemented by resources with client-side rules.
type validator interface {
	Validate() error
}

func newCollectionCommand[T any](a *app, name, singular string, collection func(*api.Client) *api.Collection[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Manage %s", name),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			items, err := collection(a.client()).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintf(a.out, "no %s\n", name)
				return nil
			}
			return writeYAML(a.out, items)
		},
	}

	var file string
	create := &cobra.Command{
		Use:   "create -f FILE",
		Short: fmt.Sprintf("Create a %s from a YAML file", singular),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			item, err := readResource[T](a.in, file)
			if err != nil {
				return err
			}
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			created, err := collection(a.client()).Create(cmd.Context(), item)
			if err != nil {
				return err
			}
			return writeYAML(a.out, created)
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "YAML file with the resource, - for stdin")
	create.MarkFlagRequired("file")

	update := &cobra.Command{
		Use:   "update ID -f FILE",
		Short: fmt.Sprintf("Replace a %s from a YAML file", singular),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := readResource[T](a.in, file)
			if err != nil {
				return err
			}
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			updated, err := collection(a.client()).Update(cmd.Context(), args[0], item)
			if err != nil {
				return err
			}
			return writeYAML(a.out, updated)
		},
	}
	update.Flags().StringVarP(&file, "file", "f", "", "YAML file with the resource, - for stdin")
	update.MarkFlagRequired("file")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: fmt.Sprintf("Delete a %s", singular),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			if err := collection(a.client()).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s deleted\n", singular, args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

// readResource decodes one resource from path, or from in when path is "-".
// Unknown fields are rejected.
func readResource[T any](in io.Reader, path string) (T, error) {
	var item T
	r := in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return item, domain.NewDomainError("readResource", domain.ErrInvalidInput, err.Error())
		}
		defer f.Close()
		r = f
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&item); err != nil {
		return item, domain.NewDomainError("readResource", domain.ErrInvalidInput, fmt.Sprintf("parse %s: %v", path, err))
	}
	if v, ok := any(item).(validator); ok {
		if err := v.Validate(); err != nil {
			return item, err
		}
	}
	return item, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
